package models

import "time"

// Direction distinguishes the two funds-movement flows.
type Direction string

const (
	DirectionDeposit    Direction = "deposit"
	DirectionWithdrawal Direction = "withdrawal"
)

// TransferMethod is one entry of a method catalog. FeeRate is a numeric
// fraction (0.025 for a "2.5%" method); the percent string exists only at
// the display boundary.
type TransferMethod struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Description          string  `json:"description"`
	MinAmount            float64 `json:"min_amount"`
	MaxAmount            float64 `json:"max_amount"`
	FeeRate              float64 `json:"fee_rate"`
	ProcessingTime       string  `json:"processing_time"`
	Popular              bool    `json:"popular"`
	RequiresVerification bool    `json:"requires_verification,omitempty"`
}

// TransferRequest is the payload from the client.
type TransferRequest struct {
	MethodID  string    `json:"method_id"`
	Amount    float64   `json:"amount"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason,omitempty"`
}

// TransferQuote is the fee/total breakdown for a proposed amount.
// Deposits charge the fee on top (Net = Gross + Fee); withdrawals deduct
// it (Net = Gross - Fee).
type TransferQuote struct {
	GrossAmount float64 `json:"gross_amount"`
	FeeAmount   float64 `json:"fee_amount"`
	NetAmount   float64 `json:"net_amount"`
}

// AccountBalances mirrors the session provider's view of the account.
// Only the live balance is eligible for withdrawal.
type AccountBalances struct {
	DemoBalance float64 `json:"demo_balance"`
	LiveBalance float64 `json:"live_balance"`
}

// Transaction types. Closed enumeration: inflows carry positive amounts,
// outflows negative.
const (
	TypeDeposit     = "deposit"
	TypeWithdrawal  = "withdrawal"
	TypeTradeProfit = "trade_profit"
	TypeTradeLoss   = "trade_loss"
	TypeBonus       = "bonus"
	TypeRefund      = "refund"
)

// Transaction statuses. Only completed transactions count toward totals.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Transaction is one ledger record. Immutable once created; status
// transitions happen through the store, never through the query engine.
type Transaction struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
	Fee         float64   `json:"fee,omitempty"`
}

// ValidTypes and ValidStatuses guard filter inputs at the API boundary.
var (
	ValidTypes = map[string]bool{
		TypeDeposit:     true,
		TypeWithdrawal:  true,
		TypeTradeProfit: true,
		TypeTradeLoss:   true,
		TypeBonus:       true,
		TypeRefund:      true,
	}
	ValidStatuses = map[string]bool{
		StatusPending:   true,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
)

// SubmissionRecord is what the flow hands to the submission sink once a
// transfer is accepted.
type SubmissionRecord struct {
	MethodID  string    `json:"method_id"`
	Method    string    `json:"method"`
	Amount    float64   `json:"amount"`
	Fee       float64   `json:"fee"`
	Direction Direction `json:"direction"`
	Reason    string    `json:"reason,omitempty"`
}
