package api

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avelichko/fundsops/internal/models"
	"github.com/avelichko/fundsops/internal/service"
	"github.com/avelichko/fundsops/internal/store"
)

// brokenWriter fails every body write, like a client that hung up
// mid-download.
type brokenWriter struct {
	header http.Header
}

func (b *brokenWriter) Header() http.Header        { return b.header }
func (b *brokenWriter) Write([]byte) (int, error)  { return 0, errors.New("connection reset") }
func (b *brokenWriter) WriteHeader(statusCode int) {}

func TestExportLogsWriteFailure(t *testing.T) {
	st := store.New(models.AccountBalances{})
	st.SeedDefault()
	opts := service.Options{Delay: time.Millisecond}
	h := NewHandler(st, service.NewTransferService(st, st, opts), service.NewTransferService(st, st, opts), time.Minute)

	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/export", nil)
	h.ExportTransactions(&brokenWriter{header: http.Header{}}, req)

	if !strings.Contains(buf.String(), "export write failed") {
		t.Fatalf("write failure not logged, log: %q", buf.String())
	}
}
