package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Router assembles the HTTP surface. Everything under /api/v1 requires the
// session bearer token; /health and /metrics stay open.
func (h *Handler) Router(sessionToken string, limiter *rate.Limiter) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(rateLimitMiddleware(limiter))
	apiV1.Use(sessionMiddleware(sessionToken))

	apiV1.HandleFunc("/methods/deposit", h.GetDepositMethods).Methods("GET")
	apiV1.HandleFunc("/methods/withdrawal", h.GetWithdrawalMethods).Methods("GET")
	apiV1.HandleFunc("/quotes", h.CreateQuote).Methods("POST")
	apiV1.HandleFunc("/deposits", h.CreateDeposit).Methods("POST")
	apiV1.HandleFunc("/withdrawals", h.CreateWithdrawal).Methods("POST")
	apiV1.HandleFunc("/transfers/status", h.GetTransferStatus).Methods("GET")
	apiV1.HandleFunc("/balances", h.GetBalances).Methods("GET")
	apiV1.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
	apiV1.HandleFunc("/transactions/summary", h.GetTransactionSummary).Methods("GET")
	apiV1.HandleFunc("/transactions/export", h.ExportTransactions).Methods("GET")

	return r
}

// sessionMiddleware stands in for the session provider: requests without a
// valid bearer token never reach the core.
func sessionMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := extractBearerToken(r.Header.Get("Authorization"))
			if !secureCompare(got, token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
