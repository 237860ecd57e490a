package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/avelichko/fundsops/internal/catalog"
	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/pricing"
)

// Rejection reasons. All are returned, never panicked; the worst outcome
// for the caller is an inline message and a disabled submit action.
var (
	ErrUnknownMethod        = catalog.ErrUnknownMethod
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrOutOfBounds          = errors.New("amount outside method bounds")
	ErrInsufficientBalance  = errors.New("amount exceeds live balance")
	ErrVerificationRequired = errors.New("method requires account verification")
	ErrDuplicateSubmission  = errors.New("submission already processing")
	ErrIncompleteRequest    = errors.New("method and amount are required")
)

// BoundsError carries the violated bound alongside ErrOutOfBounds.
type BoundsError struct {
	Amount float64
	Min    float64
	Max    float64
}

func (e *BoundsError) Error() string {
	if e.Amount < e.Min {
		return fmt.Sprintf("amount %.2f below method minimum %.2f", e.Amount, e.Min)
	}
	return fmt.Sprintf("amount %.2f above method maximum %.2f", e.Amount, e.Max)
}

func (e *BoundsError) Unwrap() error { return ErrOutOfBounds }

// Flow states.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// BalanceSource supplies the session's balances; read-only here.
type BalanceSource interface {
	Balances() models.AccountBalances
}

// Sink is the external collaborator that owns transaction records and
// balance mutation. The flow itself never touches either.
type Sink interface {
	TransferAccepted(rec models.SubmissionRecord) models.Transaction
	SettleTransfer(reference, status string) (models.Transaction, error)
}

// VerificationPolicy decides whether a verification-flagged method blocks
// submission. The default allows everything, matching observed behavior;
// the flag is carried as data either way.
type VerificationPolicy func(m models.TransferMethod) error

// RequireVerified is the strict policy for callers that want the gate.
func RequireVerified(m models.TransferMethod) error {
	if m.RequiresVerification {
		return ErrVerificationRequired
	}
	return nil
}

// Gateway simulates the processing backend. It runs after the latency
// elapses; a non-nil error drives Processing -> Failed so the state
// machine stays total. The default gateway always succeeds.
type Gateway func(ctx context.Context, rec models.SubmissionRecord) error

// Options tune a TransferService. Zero values mean: 2s latency, allow-all
// policy, always-succeeding gateway, no settlement notification.
type Options struct {
	Delay   time.Duration
	Policy  VerificationPolicy
	Gateway Gateway
	Notify  func(tx models.Transaction)
}

// TransferService validates transfer requests and runs the submission
// flow: Idle -> Validating -> Processing -> Completed | Failed. One
// service instance is one flow instance; a second submit while Validating
// or Processing is a no-op.
type TransferService struct {
	balances BalanceSource
	sink     Sink
	opts     Options

	mu       sync.Mutex
	state    State
	inflight models.Transaction
	hooks    []func(models.Transaction)
}

func NewTransferService(balances BalanceSource, sink Sink, opts Options) *TransferService {
	if opts.Delay <= 0 {
		opts.Delay = 2 * time.Second
	}
	if opts.Gateway == nil {
		opts.Gateway = func(context.Context, models.SubmissionRecord) error { return nil }
	}
	return &TransferService{
		balances: balances,
		sink:     sink,
		opts:     opts,
		state:    StateIdle,
	}
}

// Validate checks a request against the direction's catalog, the method
// bounds and, for withdrawals, the live balance. Rules run in order and
// the first failure wins. Returns the resolved method on acceptance.
func (s *TransferService) Validate(req models.TransferRequest) (models.TransferMethod, error) {
	m, err := catalog.ForDirection(req.Direction).Lookup(req.MethodID)
	if err != nil {
		return models.TransferMethod{}, err
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return models.TransferMethod{}, ErrInvalidAmount
	}
	if req.Amount < m.MinAmount || req.Amount > m.MaxAmount {
		return models.TransferMethod{}, &BoundsError{Amount: req.Amount, Min: m.MinAmount, Max: m.MaxAmount}
	}
	if req.Direction == models.DirectionWithdrawal {
		if req.Amount > s.balances.Balances().LiveBalance {
			return models.TransferMethod{}, ErrInsufficientBalance
		}
	}
	if s.opts.Policy != nil {
		if err := s.opts.Policy(m); err != nil {
			return models.TransferMethod{}, err
		}
	}
	return m, nil
}

// Submit runs one submission through the flow. On acceptance the sink
// records a pending transaction, which is returned immediately; the
// simulated processing settles it after the configured latency. The
// context is the cancellation token: cancelled before the latency elapses,
// the pending transaction settles cancelled and no balance moves.
func (s *TransferService) Submit(ctx context.Context, req models.TransferRequest) (models.Transaction, error) {
	if req.MethodID == "" || req.Amount == 0 {
		return models.Transaction{}, ErrIncompleteRequest
	}

	s.mu.Lock()
	// Validating counts as busy too: the lock is released across Validate
	// and the sink call, so guarding on Processing alone would let two
	// near-simultaneous submits both through.
	if s.state == StateValidating || s.state == StateProcessing {
		tx := s.inflight
		s.mu.Unlock()
		return tx, ErrDuplicateSubmission
	}
	s.state = StateValidating
	s.mu.Unlock()

	m, err := s.Validate(req)
	if err != nil {
		s.setState(StateFailed, models.Transaction{})
		return models.Transaction{}, err
	}

	quote, err := pricing.Quote(req.Amount, m, req.Direction)
	if err != nil {
		s.setState(StateFailed, models.Transaction{})
		return models.Transaction{}, err
	}

	rec := models.SubmissionRecord{
		MethodID:  m.ID,
		Method:    m.Name,
		Amount:    quote.GrossAmount,
		Fee:       quote.FeeAmount,
		Direction: req.Direction,
		Reason:    req.Reason,
	}
	tx := s.sink.TransferAccepted(rec)
	s.setState(StateProcessing, tx)

	go s.process(ctx, rec, tx.Reference)
	return tx, nil
}

// process waits out the simulated latency, then commits the outcome. The
// cancellation check happens before the commit so a torn-down caller never
// lands a stale completed transaction.
func (s *TransferService) process(ctx context.Context, rec models.SubmissionRecord, ref string) {
	timer := time.NewTimer(s.opts.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		settled, _ := s.sink.SettleTransfer(ref, models.StatusCancelled)
		s.setState(StateIdle, models.Transaction{})
		s.notify(settled)
		return
	case <-timer.C:
	}

	if ctx.Err() != nil {
		settled, _ := s.sink.SettleTransfer(ref, models.StatusCancelled)
		s.setState(StateIdle, models.Transaction{})
		s.notify(settled)
		return
	}

	if err := s.opts.Gateway(ctx, rec); err != nil {
		settled, _ := s.sink.SettleTransfer(ref, models.StatusFailed)
		s.setState(StateFailed, models.Transaction{})
		s.notify(settled)
		return
	}

	settled, _ := s.sink.SettleTransfer(ref, models.StatusCompleted)
	s.setState(StateCompleted, models.Transaction{})
	s.notify(settled)
}

// State reports the flow state and, while processing, the in-flight
// transaction reference.
func (s *TransferService) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.inflight.Reference
}

func (s *TransferService) setState(st State, inflight models.Transaction) {
	s.mu.Lock()
	s.state = st
	s.inflight = inflight
	s.mu.Unlock()
}

// AddSettleHook registers fn to run whenever a submission settles, before
// the Options.Notify callback. The API layer uses it to drop caches a
// settlement invalidates.
func (s *TransferService) AddSettleHook(fn func(tx models.Transaction)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

func (s *TransferService) notify(tx models.Transaction) {
	s.mu.Lock()
	hooks := make([]func(models.Transaction), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(tx)
	}
	if s.opts.Notify != nil {
		s.opts.Notify(tx)
	}
}
