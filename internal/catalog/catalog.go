package catalog

import (
	"errors"
	"math"

	"github.com/avelichko/fundsops/internal/models"
)

var ErrUnknownMethod = errors.New("unknown method")

// Catalog is an immutable table of transfer methods for one direction.
// Loaded once at init; never mutated at runtime.
type Catalog struct {
	direction Direction
	methods   []models.TransferMethod
	byID      map[string]int
}

type Direction = models.Direction

// QuickAmounts are the preset amounts offered on both pages.
var QuickAmounts = []float64{50, 100, 250, 500, 1000, 2500}

// WithdrawalReasons is the optional reason list offered on the withdrawal
// page. Free text is accepted too; the list is a display aid.
var WithdrawalReasons = []string{
	"Personal expenses",
	"Investment elsewhere",
	"Emergency funds",
	"Trading losses",
	"Other",
}

var depositMethods = []models.TransferMethod{
	{
		ID:             "credit-card",
		Name:           "Credit/Debit Card",
		Description:    "Visa, Mastercard, American Express",
		MinAmount:      10,
		MaxAmount:      5000,
		FeeRate:        0.025,
		ProcessingTime: "Instant",
		Popular:        true,
	},
	{
		ID:             "bank-transfer",
		Name:           "Bank Transfer",
		Description:    "Direct bank transfer",
		MinAmount:      50,
		MaxAmount:      10000,
		FeeRate:        0,
		ProcessingTime: "1-3 business days",
	},
	{
		ID:             "crypto",
		Name:           "Cryptocurrency",
		Description:    "Bitcoin, Ethereum, USDT",
		MinAmount:      20,
		MaxAmount:      20000,
		FeeRate:        0.01,
		ProcessingTime: "10-30 minutes",
		Popular:        true,
	},
	{
		ID:             "e-wallet",
		Name:           "E-Wallet",
		Description:    "PayPal, Skrill, Neteller",
		MinAmount:      25,
		MaxAmount:      3000,
		FeeRate:        0.03,
		ProcessingTime: "Instant",
	},
}

// The same logical channel carries different limits, fees and processing
// times on the way out, so the withdrawal table is a distinct catalog.
var withdrawalMethods = []models.TransferMethod{
	{
		ID:                   "bank-transfer",
		Name:                 "Bank Transfer",
		Description:          "Direct transfer to your bank account",
		MinAmount:            50,
		MaxAmount:            10000,
		FeeRate:              0,
		ProcessingTime:       "1-3 business days",
		Popular:              true,
		RequiresVerification: true,
	},
	{
		ID:             "credit-card",
		Name:           "Credit/Debit Card",
		Description:    "Refund to original payment method",
		MinAmount:      10,
		MaxAmount:      5000,
		FeeRate:        0.025,
		ProcessingTime: "3-5 business days",
	},
	{
		ID:                   "crypto",
		Name:                 "Cryptocurrency",
		Description:          "Bitcoin, Ethereum, USDT",
		MinAmount:            20,
		MaxAmount:            20000,
		FeeRate:              0.01,
		ProcessingTime:       "1-2 hours",
		Popular:              true,
		RequiresVerification: true,
	},
	{
		ID:                   "e-wallet",
		Name:                 "E-Wallet",
		Description:          "PayPal, Skrill, Neteller",
		MinAmount:            25,
		MaxAmount:            3000,
		FeeRate:              0.03,
		ProcessingTime:       "24 hours",
		RequiresVerification: true,
	},
}

var (
	deposit    = build(models.DirectionDeposit, depositMethods)
	withdrawal = build(models.DirectionWithdrawal, withdrawalMethods)
)

func build(dir Direction, methods []models.TransferMethod) *Catalog {
	byID := make(map[string]int, len(methods))
	for i, m := range methods {
		if _, dup := byID[m.ID]; dup {
			panic("catalog: duplicate method id " + m.ID)
		}
		byID[m.ID] = i
	}
	return &Catalog{direction: dir, methods: methods, byID: byID}
}

// Deposit returns the deposit method catalog.
func Deposit() *Catalog { return deposit }

// Withdrawal returns the withdrawal method catalog.
func Withdrawal() *Catalog { return withdrawal }

// ForDirection picks the catalog matching the transfer direction.
func ForDirection(dir Direction) *Catalog {
	if dir == models.DirectionWithdrawal {
		return withdrawal
	}
	return deposit
}

func (c *Catalog) Direction() Direction { return c.direction }

// Lookup resolves a method id within this catalog.
func (c *Catalog) Lookup(id string) (models.TransferMethod, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.TransferMethod{}, ErrUnknownMethod
	}
	return c.methods[i], nil
}

// Methods returns a copy of the table in display order.
func (c *Catalog) Methods() []models.TransferMethod {
	out := make([]models.TransferMethod, len(c.methods))
	copy(out, c.methods)
	return out
}

// EffectiveMax is the upper bound offered to the user for a withdrawal
// method: the lesser of the method cap and the live balance. Validation
// still checks both independently.
func EffectiveMax(m models.TransferMethod, liveBalance float64) float64 {
	return math.Min(m.MaxAmount, liveBalance)
}
