// Generates a transaction-history fixture consumed by the API server at
// boot (FIXTURE_PATH). The mix leans on completed deposits and withdrawals
// with a sprinkling of trade results and bonuses, so the ledger filters and
// the summary have something to chew on out of the box.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelichko/fundsops/internal/catalog"
	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/pricing"
)

var (
	count   int
	output  string
	spanDur time.Duration
)

func init() {
	flag.IntVar(&count, "count", 50, "Number of transactions to generate")
	flag.StringVar(&output, "out", "fixture.json", "Output file path")
	flag.DurationVar(&spanDur, "span", 90*24*time.Hour, "How far back the history reaches")
}

func main() {
	flag.Parse()
	log.Printf("--- Generating fixture: %d transactions over %s ---", count, spanDur)

	now := time.Now().UTC()
	txns := make([]models.Transaction, 0, count)
	for i := 0; i < count; i++ {
		date := now.Add(-time.Duration(rand.Int63n(int64(spanDur))))
		txns = append(txns, generate(date))
	}

	// Newest first, matching how the history reads.
	sort.Slice(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })

	data, err := json.MarshalIndent(txns, "", "  ")
	if err != nil {
		log.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		log.Fatalf("Write failed: %v", err)
	}
	log.Printf("Successfully wrote %d transactions to %s", len(txns), output)
}

func generate(date time.Time) models.Transaction {
	switch rand.Intn(6) {
	case 0, 1:
		return transfer(models.DirectionDeposit, date)
	case 2, 3:
		return transfer(models.DirectionWithdrawal, date)
	case 4:
		return tradeResult(date)
	default:
		if rand.Intn(2) == 0 {
			return simple(models.TypeBonus, 25+float64(rand.Intn(8))*25, "Promotional bonus credit", "BON", date)
		}
		return simple(models.TypeRefund, 10+float64(rand.Intn(20))*5, "Fee refund", "REF", date)
	}
}

func transfer(dir models.Direction, date time.Time) models.Transaction {
	methods := catalog.ForDirection(dir).Methods()
	m := methods[rand.Intn(len(methods))]

	amount := m.MinAmount + rand.Float64()*(m.MaxAmount-m.MinAmount)
	amount = pricing.RoundDisplay(amount)
	fee := pricing.RoundDisplay(amount * m.FeeRate)

	txType := models.TypeDeposit
	desc := fmt.Sprintf("Deposit via %s", m.Name)
	prefix := "DEP"
	if dir == models.DirectionWithdrawal {
		amount = -amount
		txType = models.TypeWithdrawal
		desc = fmt.Sprintf("Withdrawal via %s", m.Name)
		prefix = "WTH"
	}

	status := models.StatusCompleted
	switch rand.Intn(10) {
	case 0:
		status = models.StatusPending
	case 1:
		status = models.StatusFailed
	}

	ref := newReference(prefix)
	return models.Transaction{
		ID:          ref,
		Type:        txType,
		Amount:      amount,
		Method:      m.Name,
		Status:      status,
		Date:        date,
		Description: desc,
		Reference:   ref,
		Fee:         fee,
	}
}

func tradeResult(date time.Time) models.Transaction {
	pairs := []string{"EUR/USD", "GBP/JPY", "BTC/USD", "XAU/USD", "US500"}
	pair := pairs[rand.Intn(len(pairs))]
	amount := pricing.RoundDisplay(5 + rand.Float64()*495)
	if rand.Intn(2) == 0 {
		return simple(models.TypeTradeProfit, amount, fmt.Sprintf("Profit on %s position", pair), "TRD", date)
	}
	return simple(models.TypeTradeLoss, -amount, fmt.Sprintf("Loss on %s position", pair), "TRD", date)
}

func simple(txType string, amount float64, desc, prefix string, date time.Time) models.Transaction {
	ref := newReference(prefix)
	return models.Transaction{
		ID:          ref,
		Type:        txType,
		Amount:      amount,
		Status:      models.StatusCompleted,
		Date:        date,
		Description: desc,
		Reference:   ref,
	}
}

func newReference(prefix string) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", prefix, id[:12])
}
