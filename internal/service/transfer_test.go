package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/store"
)

func newService(t *testing.T, balances models.AccountBalances, opts Options) (*TransferService, *store.Store, chan models.Transaction) {
	t.Helper()
	st := store.New(balances)
	settled := make(chan models.Transaction, 1)
	if opts.Notify == nil {
		opts.Notify = func(tx models.Transaction) { settled <- tx }
	}
	if opts.Delay == 0 {
		opts.Delay = 10 * time.Millisecond
	}
	return NewTransferService(st, st, opts), st, settled
}

func waitSettled(t *testing.T, ch chan models.Transaction) models.Transaction {
	t.Helper()
	select {
	case tx := <-ch:
		return tx
	case <-time.After(2 * time.Second):
		t.Fatal("submission never settled")
		return models.Transaction{}
	}
}

func TestValidateRuleOrder(t *testing.T) {
	svc, _, _ := newService(t, models.AccountBalances{LiveBalance: 300}, Options{})

	// Unknown method wins even when the amount is also bad.
	if _, err := svc.Validate(models.TransferRequest{MethodID: "cheque", Amount: -5, Direction: models.DirectionDeposit}); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}

	if _, err := svc.Validate(models.TransferRequest{MethodID: "credit-card", Amount: 0, Direction: models.DirectionDeposit}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	_, err := svc.Validate(models.TransferRequest{MethodID: "credit-card", Amount: 5, Direction: models.DirectionDeposit})
	if !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	var be *BoundsError
	if !errors.As(err, &be) || be.Min != 10 {
		t.Fatalf("expected BoundsError carrying min 10, got %#v", err)
	}

	if _, err := svc.Validate(models.TransferRequest{MethodID: "credit-card", Amount: 9999, Direction: models.DirectionDeposit}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds above max, got %v", err)
	}
}

func TestValidateInsufficientBalance(t *testing.T) {
	// crypto withdrawal of 500 against a live balance of 300.
	svc, _, _ := newService(t, models.AccountBalances{LiveBalance: 300}, Options{})
	if _, err := svc.Validate(models.TransferRequest{MethodID: "crypto", Amount: 500, Direction: models.DirectionWithdrawal}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The same request as a deposit ignores the balance.
	if _, err := svc.Validate(models.TransferRequest{MethodID: "crypto", Amount: 500, Direction: models.DirectionDeposit}); err != nil {
		t.Fatalf("deposit should not consult the balance: %v", err)
	}
}

func TestValidateMethodMaxStillBindsUnderHighBalance(t *testing.T) {
	svc, _, _ := newService(t, models.AccountBalances{LiveBalance: 100000}, Options{})
	if _, err := svc.Validate(models.TransferRequest{MethodID: "e-wallet", Amount: 5000, Direction: models.DirectionWithdrawal}); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("method cap must bind regardless of balance, got %v", err)
	}
}

func TestValidateAcceptsAmountsWithinBounds(t *testing.T) {
	svc, _, _ := newService(t, models.AccountBalances{LiveBalance: 50000}, Options{})
	reqs := []models.TransferRequest{
		{MethodID: "credit-card", Amount: 10, Direction: models.DirectionDeposit},
		{MethodID: "credit-card", Amount: 5000, Direction: models.DirectionDeposit},
		{MethodID: "bank-transfer", Amount: 50, Direction: models.DirectionWithdrawal},
		{MethodID: "crypto", Amount: 20000, Direction: models.DirectionWithdrawal},
	}
	for _, req := range reqs {
		if _, err := svc.Validate(req); err != nil {
			t.Fatalf("%s %s %v: %v", req.Direction, req.MethodID, req.Amount, err)
		}
	}
}

func TestVerificationPolicyHook(t *testing.T) {
	// Default: flagged methods pass.
	svc, _, _ := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{})
	if _, err := svc.Validate(models.TransferRequest{MethodID: "bank-transfer", Amount: 100, Direction: models.DirectionWithdrawal}); err != nil {
		t.Fatalf("default policy must not block: %v", err)
	}

	strict, _, _ := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{Policy: RequireVerified})
	if _, err := strict.Validate(models.TransferRequest{MethodID: "bank-transfer", Amount: 100, Direction: models.DirectionWithdrawal}); !errors.Is(err, ErrVerificationRequired) {
		t.Fatalf("strict policy should block flagged method, got %v", err)
	}
	// Unflagged methods still pass under the strict policy.
	if _, err := strict.Validate(models.TransferRequest{MethodID: "credit-card", Amount: 100, Direction: models.DirectionWithdrawal}); err != nil {
		t.Fatalf("unflagged method blocked: %v", err)
	}
}

func TestSubmitDepositCompletes(t *testing.T) {
	svc, st, settled := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{})

	pending, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "credit-card", Amount: 200, Direction: models.DirectionDeposit,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pending.Status != models.StatusPending {
		t.Fatalf("expected pending record, got %s", pending.Status)
	}
	if state, ref := svc.State(); state != StateProcessing || ref != pending.Reference {
		t.Fatalf("expected processing %s, got %s %s", pending.Reference, state, ref)
	}

	done := waitSettled(t, settled)
	if done.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	if done.Fee != 5 {
		t.Fatalf("expected 2.5%% fee of 5, got %v", done.Fee)
	}
	if b := st.Balances(); b.LiveBalance != 1200 {
		t.Fatalf("expected live balance 1200, got %v", b.LiveBalance)
	}
	if state, _ := svc.State(); state != StateCompleted {
		t.Fatalf("expected completed state, got %s", state)
	}
}

func TestSubmitRejectionFailsFlow(t *testing.T) {
	svc, st, _ := newService(t, models.AccountBalances{LiveBalance: 300}, Options{})

	_, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "crypto", Amount: 500, Direction: models.DirectionWithdrawal,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if state, _ := svc.State(); state != StateFailed {
		t.Fatalf("expected failed state, got %s", state)
	}
	if txns := st.ListTransactions(); len(txns) != 0 {
		t.Fatalf("rejected submission must not create a transaction, got %d", len(txns))
	}
}

func TestSubmitIncompleteRequestIsNoOp(t *testing.T) {
	svc, st, _ := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{})
	if _, err := svc.Submit(context.Background(), models.TransferRequest{Direction: models.DirectionDeposit}); !errors.Is(err, ErrIncompleteRequest) {
		t.Fatalf("expected ErrIncompleteRequest, got %v", err)
	}
	if state, _ := svc.State(); state != StateIdle {
		t.Fatalf("no-op must stay idle, got %s", state)
	}
	if txns := st.ListTransactions(); len(txns) != 0 {
		t.Fatalf("no-op created a transaction")
	}
}

func TestSubmitDuplicateWhileProcessing(t *testing.T) {
	svc, st, settled := newService(t, models.AccountBalances{LiveBalance: 5000}, Options{Delay: 300 * time.Millisecond})

	first, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "bank-transfer", Amount: 500, Direction: models.DirectionWithdrawal, Reason: "Personal expenses",
	})
	if err != nil {
		t.Fatal(err)
	}

	dup, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "bank-transfer", Amount: 500, Direction: models.DirectionWithdrawal,
	})
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if dup.Reference != first.Reference {
		t.Fatalf("duplicate should surface the in-flight reference %s, got %s", first.Reference, dup.Reference)
	}

	waitSettled(t, settled)
	if txns := st.ListTransactions(); len(txns) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(txns))
	}
	if b := st.Balances(); b.LiveBalance != 4500 {
		t.Fatalf("expected 4500 after the single withdrawal, got %v", b.LiveBalance)
	}
}

// gatedBalances parks the caller inside Balances until released, holding
// a submission in the Validating state.
type gatedBalances struct {
	inner   *store.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBalances) Balances() models.AccountBalances {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.Balances()
}

func TestSubmitSecondWhileValidatingRejected(t *testing.T) {
	st := store.New(models.AccountBalances{LiveBalance: 1000})
	gate := &gatedBalances{inner: st, entered: make(chan struct{}, 1), release: make(chan struct{})}
	settled := make(chan models.Transaction, 1)
	svc := NewTransferService(gate, st, Options{
		Delay:  10 * time.Millisecond,
		Notify: func(tx models.Transaction) { settled <- tx },
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), models.TransferRequest{
			MethodID: "crypto", Amount: 100, Direction: models.DirectionWithdrawal,
		})
		firstErr <- err
	}()

	// The first submit is now blocked mid-Validate; a second one must not
	// slip past the guard.
	<-gate.entered
	if _, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "crypto", Amount: 100, Direction: models.DirectionWithdrawal,
	}); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission while validating, got %v", err)
	}
	close(gate.release)

	if err := <-firstErr; err != nil {
		t.Fatal(err)
	}
	waitSettled(t, settled)
	if txns := st.ListTransactions(); len(txns) != 1 {
		t.Fatalf("expected exactly one transaction, got %d", len(txns))
	}
	if b := st.Balances(); b.LiveBalance != 900 {
		t.Fatalf("expected 900 after the single withdrawal, got %v", b.LiveBalance)
	}
}

func TestSubmitCancellation(t *testing.T) {
	svc, st, settled := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{Delay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	pending, err := svc.Submit(ctx, models.TransferRequest{
		MethodID: "crypto", Amount: 100, Direction: models.DirectionWithdrawal,
	})
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	done := waitSettled(t, settled)
	if done.Status != models.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", done.Status)
	}
	if done.Reference != pending.Reference {
		t.Fatalf("settled a different transaction: %s vs %s", done.Reference, pending.Reference)
	}
	if b := st.Balances(); b.LiveBalance != 1000 {
		t.Fatalf("cancelled transfer must not move the balance, got %v", b.LiveBalance)
	}
	if state, _ := svc.State(); state != StateIdle {
		t.Fatalf("expected idle after cancellation, got %s", state)
	}
}

func TestSubmitGatewayDecline(t *testing.T) {
	declined := errors.New("declined by gateway")
	svc, st, settled := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{
		Gateway: func(context.Context, models.SubmissionRecord) error { return declined },
	})

	if _, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "e-wallet", Amount: 100, Direction: models.DirectionDeposit,
	}); err != nil {
		t.Fatal(err)
	}

	done := waitSettled(t, settled)
	if done.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	if b := st.Balances(); b.LiveBalance != 1000 {
		t.Fatalf("failed transfer must not move the balance, got %v", b.LiveBalance)
	}
	if state, _ := svc.State(); state != StateFailed {
		t.Fatalf("expected failed state, got %s", state)
	}
}

func TestSettleHookRunsBeforeNotify(t *testing.T) {
	hookRan := false
	settled := make(chan models.Transaction, 1)
	st := store.New(models.AccountBalances{LiveBalance: 1000})
	svc := NewTransferService(st, st, Options{
		Delay: 10 * time.Millisecond,
		Notify: func(tx models.Transaction) {
			if !hookRan {
				t.Error("notify fired before the settle hook")
			}
			settled <- tx
		},
	})
	svc.AddSettleHook(func(models.Transaction) { hookRan = true })

	if _, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "credit-card", Amount: 50, Direction: models.DirectionDeposit,
	}); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, settled)
}

func TestFlowReusableAfterCompletion(t *testing.T) {
	svc, _, settled := newService(t, models.AccountBalances{LiveBalance: 1000}, Options{})

	if _, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "credit-card", Amount: 50, Direction: models.DirectionDeposit,
	}); err != nil {
		t.Fatal(err)
	}
	waitSettled(t, settled)

	if _, err := svc.Submit(context.Background(), models.TransferRequest{
		MethodID: "credit-card", Amount: 60, Direction: models.DirectionDeposit,
	}); err != nil {
		t.Fatalf("flow must accept a new submission after completion: %v", err)
	}
	waitSettled(t, settled)
}
