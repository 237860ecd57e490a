// Package pricing computes fee/total breakdowns for proposed transfers.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/avelichko/fundsops/internal/models"
)

var ErrInvalidAmount = errors.New("amount must be a positive finite number")

// Quote prices a transfer amount against a method. Pure function: fee is
// the method's fraction of the gross amount; deposits add the fee on top
// (what the account is charged), withdrawals deduct it (what the user
// receives). Computation stays in full float precision; rounding happens
// only in the display formatters below.
func Quote(amount float64, method models.TransferMethod, dir models.Direction) (models.TransferQuote, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return models.TransferQuote{}, ErrInvalidAmount
	}

	fee := amount * method.FeeRate
	q := models.TransferQuote{
		GrossAmount: amount,
		FeeAmount:   fee,
	}
	if dir == models.DirectionWithdrawal {
		q.NetAmount = amount - fee
	} else {
		q.NetAmount = amount + fee
	}
	return q, nil
}

// RoundDisplay rounds a value to the 2 decimal places shown to the user.
func RoundDisplay(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatAmount renders a value the way the pages do: "$205.00".
func FormatAmount(v float64) string {
	return fmt.Sprintf("$%.2f", RoundDisplay(v))
}

// FormatFeeRate turns the stored fraction back into the catalog's display
// string: 0.025 -> "2.5%", 0 -> "Free".
func FormatFeeRate(rate float64) string {
	if rate == 0 {
		return "Free"
	}
	return fmt.Sprintf("%g%%", rate*100)
}
