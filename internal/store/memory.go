// Package store keeps the mock account state: the transaction ledger and
// the demo/live balances. It plays both external collaborator roles from
// the flow's point of view: submission sink (pending record on accept,
// settlement on completion) and transaction source for the query engine.
// State is process-local; nothing persists across restarts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/fundsops/internal/models"
)

var (
	ErrNotFound      = errors.New("transaction not found")
	ErrInvalidStatus = errors.New("invalid status transition")
)

type Store struct {
	mu           sync.Mutex
	transactions []models.Transaction
	balances     models.AccountBalances
	now          func() time.Time
}

func New(balances models.AccountBalances) *Store {
	return &Store{balances: balances, now: time.Now}
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// LoadFixture seeds the ledger from a JSON file produced by cmd/seeder.
func (s *Store) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var txns []models.Transaction
	if err := json.Unmarshal(data, &txns); err != nil {
		return fmt.Errorf("parse fixture: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = txns
	return nil
}

// SeedDefault loads the built-in mock history: three pending bank-transfer
// withdrawal requests.
func (s *Store) SeedDefault() {
	loc := time.UTC
	mk := func(id string, date time.Time, desc string) models.Transaction {
		return models.Transaction{
			ID:          id,
			Type:        models.TypeWithdrawal,
			Amount:      -1000,
			Method:      "Bank Transfer",
			Status:      models.StatusPending,
			Date:        date,
			Description: desc,
			Reference:   id,
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = []models.Transaction{
		mk("WTH-001", time.Date(2025, 9, 8, 10, 23, 0, 0, loc), "Withdrawal request - Monday morning"),
		mk("WTH-002", time.Date(2025, 9, 9, 10, 23, 0, 0, loc), "Withdrawal request - Tuesday morning"),
		mk("WTH-003", time.Date(2025, 9, 10, 10, 0, 0, 0, loc), "Withdrawal request - Wednesday morning"),
	}
}

// ListTransactions returns a copy of the ledger in insertion order.
func (s *Store) ListTransactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Balances returns the current account balances.
func (s *Store) Balances() models.AccountBalances {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances
}

// TransferAccepted records a pending transaction for an accepted transfer
// and returns it. Withdrawals are stored with a negative amount, per the
// ledger's sign convention.
func (s *Store) TransferAccepted(rec models.SubmissionRecord) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := newReference(rec.Direction)
	amount := rec.Amount
	desc := fmt.Sprintf("Deposit via %s", rec.Method)
	txType := models.TypeDeposit
	if rec.Direction == models.DirectionWithdrawal {
		amount = -rec.Amount
		txType = models.TypeWithdrawal
		desc = fmt.Sprintf("Withdrawal via %s", rec.Method)
		if rec.Reason != "" {
			desc = fmt.Sprintf("%s - %s", desc, rec.Reason)
		}
	}

	tx := models.Transaction{
		ID:          ref,
		Type:        txType,
		Amount:      amount,
		Method:      rec.Method,
		Status:      models.StatusPending,
		Date:        s.now(),
		Description: desc,
		Reference:   ref,
		Fee:         rec.Fee,
	}
	s.transactions = append(s.transactions, tx)
	return tx
}

// SettleTransfer transitions a pending transaction to a terminal status.
// Completed transfers move the live balance: deposits credit the gross
// amount, withdrawals debit it. Balance updates are serialized here.
func (s *Store) SettleTransfer(reference, status string) (models.Transaction, error) {
	if status != models.StatusCompleted && status != models.StatusFailed && status != models.StatusCancelled {
		return models.Transaction{}, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].Reference != reference {
			continue
		}
		if s.transactions[i].Status != models.StatusPending {
			return models.Transaction{}, ErrInvalidStatus
		}
		s.transactions[i].Status = status
		if status == models.StatusCompleted {
			s.balances.LiveBalance += s.transactions[i].Amount
		}
		return s.transactions[i], nil
	}
	return models.Transaction{}, ErrNotFound
}

// GetTransaction resolves a record by reference.
func (s *Store) GetTransaction(reference string) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.Reference == reference {
			return tx, nil
		}
	}
	return models.Transaction{}, ErrNotFound
}

func newReference(dir models.Direction) string {
	prefix := "DEP"
	if dir == models.DirectionWithdrawal {
		prefix = "WTH"
	}
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, id[:12])
}
