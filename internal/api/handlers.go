package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/avelichko/fundsops/internal/catalog"
	"github.com/avelichko/fundsops/internal/ledger"
	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/pricing"
	"github.com/avelichko/fundsops/internal/service"
	"github.com/avelichko/fundsops/internal/store"
)

var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "funds_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	transfersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "funds_transfers_submitted_total",
		Help: "Transfer submissions by direction and outcome",
	}, []string{"direction", "result"})
)

const summaryCacheKey = "ledger_summary"

type Handler struct {
	store        *store.Store
	deposits     *service.TransferService
	withdrawals  *service.TransferService
	summaryCache *cache.Cache
}

// NewHandler wires the two flow instances (one per page, so a deposit in
// flight never blocks a withdrawal) over the shared store.
func NewHandler(st *store.Store, deposits, withdrawals *service.TransferService, summaryTTL time.Duration) *Handler {
	h := &Handler{
		store:        st,
		deposits:     deposits,
		withdrawals:  withdrawals,
		summaryCache: cache.New(summaryTTL, 2*summaryTTL),
	}
	// A settled transfer changes the totals; the cached summary must not
	// outlive it.
	flush := func(models.Transaction) { h.summaryCache.Delete(summaryCacheKey) }
	deposits.AddSettleHook(flush)
	withdrawals.AddSettleHook(flush)
	return h
}

type methodView struct {
	models.TransferMethod
	Fee          string   `json:"fee"`
	EffectiveMax *float64 `json:"effective_max,omitempty"`
}

type quickAmount struct {
	Amount    float64 `json:"amount"`
	Available bool    `json:"available"`
}

type methodsResponse struct {
	Direction    models.Direction `json:"direction"`
	Methods      []methodView     `json:"methods"`
	QuickAmounts []quickAmount    `json:"quick_amounts"`
	Reasons      []string         `json:"reasons,omitempty"`
}

func (h *Handler) GetDepositMethods(w http.ResponseWriter, r *http.Request) {
	resp := methodsResponse{Direction: models.DirectionDeposit}
	for _, m := range catalog.Deposit().Methods() {
		resp.Methods = append(resp.Methods, methodView{TransferMethod: m, Fee: pricing.FormatFeeRate(m.FeeRate)})
	}
	for _, qa := range catalog.QuickAmounts {
		resp.QuickAmounts = append(resp.QuickAmounts, quickAmount{Amount: qa, Available: true})
	}
	h.respondJSON(w, http.StatusOK, resp, "GET", "/methods/deposit")
}

func (h *Handler) GetWithdrawalMethods(w http.ResponseWriter, r *http.Request) {
	live := h.store.Balances().LiveBalance
	resp := methodsResponse{Direction: models.DirectionWithdrawal, Reasons: catalog.WithdrawalReasons}
	for _, m := range catalog.Withdrawal().Methods() {
		max := catalog.EffectiveMax(m, live)
		resp.Methods = append(resp.Methods, methodView{
			TransferMethod: m,
			Fee:            pricing.FormatFeeRate(m.FeeRate),
			EffectiveMax:   &max,
		})
	}
	for _, qa := range catalog.QuickAmounts {
		resp.QuickAmounts = append(resp.QuickAmounts, quickAmount{Amount: qa, Available: qa <= live})
	}
	h.respondJSON(w, http.StatusOK, resp, "GET", "/methods/withdrawal")
}

type quoteRequest struct {
	MethodID  string           `json:"method_id"`
	Amount    float64          `json:"amount"`
	Direction models.Direction `json:"direction"`
}

type quoteResponse struct {
	models.TransferQuote
	GrossDisplay string `json:"gross_display"`
	FeeDisplay   string `json:"fee_display"`
	NetDisplay   string `json:"net_display"`
}

func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/quotes"))
	defer timer.ObserveDuration()

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json", "Malformed JSON body", "POST", "/quotes")
		return
	}
	if req.Direction != models.DirectionDeposit && req.Direction != models.DirectionWithdrawal {
		h.respondError(w, http.StatusBadRequest, "invalid_direction", "direction must be deposit or withdrawal", "POST", "/quotes")
		return
	}

	m, err := catalog.ForDirection(req.Direction).Lookup(req.MethodID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "unknown_method", "Select a payment method", "POST", "/quotes")
		return
	}

	q, err := pricing.Quote(req.Amount, m, req.Direction)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error(), "POST", "/quotes")
		return
	}

	h.respondJSON(w, http.StatusOK, quoteResponse{
		TransferQuote: q,
		GrossDisplay:  pricing.FormatAmount(q.GrossAmount),
		FeeDisplay:    pricing.FormatAmount(q.FeeAmount),
		NetDisplay:    pricing.FormatAmount(q.NetAmount),
	}, "POST", "/quotes")
}

type submitRequest struct {
	MethodID string  `json:"method_id"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason,omitempty"`
}

type submitResponse struct {
	Reference string        `json:"reference"`
	State     service.State `json:"state"`
	Amount    float64       `json:"amount"`
	Fee       float64       `json:"fee"`
}

func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	h.submitTransfer(w, r, models.DirectionDeposit, h.deposits, "/deposits")
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.submitTransfer(w, r, models.DirectionWithdrawal, h.withdrawals, "/withdrawals")
}

func (h *Handler) submitTransfer(w http.ResponseWriter, r *http.Request, dir models.Direction, flow *service.TransferService, endpoint string) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", endpoint))
	defer timer.ObserveDuration()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json", "Malformed JSON body", "POST", endpoint)
		return
	}

	// The request context dies with the connection; the simulated
	// processing must outlive it, so the flow gets a detached context.
	tx, err := flow.Submit(context.WithoutCancel(r.Context()), models.TransferRequest{
		MethodID:  req.MethodID,
		Amount:    req.Amount,
		Direction: dir,
		Reason:    req.Reason,
	})

	if err != nil {
		if errors.Is(err, service.ErrDuplicateSubmission) {
			// Silent no-op: surface the in-flight submission instead.
			transfersSubmitted.WithLabelValues(string(dir), "duplicate").Inc()
			h.respondJSON(w, http.StatusAccepted, submitResponse{
				Reference: tx.Reference,
				State:     service.StateProcessing,
				Amount:    tx.Amount,
				Fee:       tx.Fee,
			}, "POST", endpoint)
			return
		}
		transfersSubmitted.WithLabelValues(string(dir), "rejected").Inc()
		status, code := rejectionStatus(err)
		h.respondError(w, status, code, err.Error(), "POST", endpoint)
		return
	}

	transfersSubmitted.WithLabelValues(string(dir), "accepted").Inc()
	h.respondJSON(w, http.StatusAccepted, submitResponse{
		Reference: tx.Reference,
		State:     service.StateProcessing,
		Amount:    tx.Amount,
		Fee:       tx.Fee,
	}, "POST", endpoint)
}

func rejectionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUnknownMethod):
		return http.StatusNotFound, "unknown_method"
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, service.ErrOutOfBounds):
		return http.StatusUnprocessableEntity, "out_of_bounds"
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, service.ErrVerificationRequired):
		return http.StatusForbidden, "verification_required"
	case errors.Is(err, service.ErrIncompleteRequest):
		return http.StatusBadRequest, "incomplete_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type flowStatusResponse struct {
	Deposit            service.State `json:"deposit"`
	DepositInflight    string        `json:"deposit_inflight,omitempty"`
	Withdrawal         service.State `json:"withdrawal"`
	WithdrawalInflight string        `json:"withdrawal_inflight,omitempty"`
}

func (h *Handler) GetTransferStatus(w http.ResponseWriter, r *http.Request) {
	depState, depRef := h.deposits.State()
	wthState, wthRef := h.withdrawals.State()
	h.respondJSON(w, http.StatusOK, flowStatusResponse{
		Deposit:            depState,
		DepositInflight:    depRef,
		Withdrawal:         wthState,
		WithdrawalInflight: wthRef,
	}, "GET", "/transfers/status")
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.store.Balances(), "GET", "/balances")
}

type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/transactions"))
	defer timer.ObserveDuration()

	criteria, err := criteriaFromQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_filter", err.Error(), "GET", "/transactions")
		return
	}

	filtered := ledger.Filter(h.store.ListTransactions(), criteria)
	h.respondJSON(w, http.StatusOK, transactionsResponse{
		Transactions: filtered,
		Count:        len(filtered),
	}, "GET", "/transactions")
}

func (h *Handler) GetTransactionSummary(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.summaryCache.Get(summaryCacheKey); ok {
		h.respondJSON(w, http.StatusOK, cached, "GET", "/transactions/summary")
		return
	}
	summary := ledger.Summarize(h.store.ListTransactions())
	h.summaryCache.Set(summaryCacheKey, summary, cache.DefaultExpiration)
	h.respondJSON(w, http.StatusOK, summary, "GET", "/transactions/summary")
}

// ExportTransactions streams the currently filtered sequence as CSV; the
// filter criteria come from the same query parameters as /transactions.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	criteria, err := criteriaFromQuery(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_filter", err.Error(), "GET", "/transactions/export")
		return
	}
	filtered := ledger.Filter(h.store.ListTransactions(), criteria)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "type", "amount", "method", "status", "date", "description", "reference", "fee"})
	for _, tx := range filtered {
		_ = cw.Write([]string{
			tx.ID,
			ledger.TypeLabel(tx.Type),
			strconv.FormatFloat(pricing.RoundDisplay(tx.Amount), 'f', 2, 64),
			tx.Method,
			tx.Status,
			tx.Date.Format(time.RFC3339),
			tx.Description,
			tx.Reference,
			strconv.FormatFloat(pricing.RoundDisplay(tx.Fee), 'f', 2, 64),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// The 200 header is already on the wire; the failure can only be logged.
		log.Printf("transaction export write failed: %v", err)
		return
	}
	httpReqTotal.WithLabelValues("GET", "/transactions/export", "200").Inc()
}

func criteriaFromQuery(r *http.Request) (ledger.Criteria, error) {
	q := r.URL.Query()
	c := ledger.Criteria{
		Search:    q.Get("search"),
		Type:      q.Get("type"),
		Status:    q.Get("status"),
		DateRange: ledger.RangeAll,
	}
	if c.Type != "" && c.Type != "all" && !models.ValidTypes[c.Type] {
		return c, fmt.Errorf("unknown type %q", c.Type)
	}
	if c.Status != "" && c.Status != "all" && !models.ValidStatuses[c.Status] {
		return c, fmt.Errorf("unknown status %q", c.Status)
	}
	if rng := q.Get("range"); rng != "" {
		if !ledger.ValidRange(rng) {
			return c, fmt.Errorf("unknown range %q", rng)
		}
		c.DateRange = ledger.DateRange(rng)
	}
	return c, nil
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// Helpers

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, code int, errCode, message, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": errCode, "message": message}, method, endpoint)
}
