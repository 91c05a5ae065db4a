package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/mailer"
	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

const testGatewayURL = "https://pay.example.test/checkout"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flakyGateway fails selected operations with transient errors. failures
// counts down per "op:table" key; broken fails forever; lost applies the write
// and then reports a transient error, as a dropped reply would.
type flakyGateway struct {
	*storage.MemoryGateway

	mu       sync.Mutex
	failures map[string]int
	broken   map[string]bool
	lost     map[string]int
	calls    map[string]int
}

func newFlakyGateway() *flakyGateway {
	return &flakyGateway{
		MemoryGateway: storage.NewMemoryGateway(),
		failures:      make(map[string]int),
		broken:        make(map[string]bool),
		lost:          make(map[string]int),
		calls:         make(map[string]int),
	}
}

func (f *flakyGateway) failNext(op, table string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+":"+table] = n
}

func (f *flakyGateway) breakOp(op, table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken[op+":"+table] = true
}

func (f *flakyGateway) loseReply(op, table string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost[op+":"+table] = n
}

// reply turns a successful write into a transient error while lost replies remain.
func (f *flakyGateway) reply(op, table string, err error) error {
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + table
	if f.lost[key] > 0 {
		f.lost[key]--
		return &storage.TransientError{Op: key, Err: errors.New("read: connection timed out")}
	}
	return nil
}

func (f *flakyGateway) callCount(op, table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op+":"+table]
}

func (f *flakyGateway) check(op, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + table
	f.calls[key]++
	if f.broken[key] {
		return &storage.TransientError{Op: key, Err: errors.New("connection reset by peer")}
	}
	if f.failures[key] > 0 {
		f.failures[key]--
		return &storage.TransientError{Op: key, Err: errors.New("fetch failed")}
	}
	return nil
}

func (f *flakyGateway) Select(ctx context.Context, table, columns string, filters ...storage.Filter) ([]byte, error) {
	if err := f.check("select", table); err != nil {
		return nil, err
	}
	return f.MemoryGateway.Select(ctx, table, columns, filters...)
}

func (f *flakyGateway) Insert(ctx context.Context, table string, values interface{}) ([]byte, error) {
	if err := f.check("insert", table); err != nil {
		return nil, err
	}
	return f.MemoryGateway.Insert(ctx, table, values)
}

func (f *flakyGateway) Upsert(ctx context.Context, table string, values interface{}, onConflict string) ([]byte, error) {
	if err := f.check("upsert", table); err != nil {
		return nil, err
	}
	raw, err := f.MemoryGateway.Upsert(ctx, table, values, onConflict)
	if err := f.reply("upsert", table, err); err != nil {
		return nil, err
	}
	return raw, nil
}

func (f *flakyGateway) Update(ctx context.Context, table string, values interface{}, filters ...storage.Filter) ([]byte, int64, error) {
	if err := f.check("update", table); err != nil {
		return nil, 0, err
	}
	raw, n, err := f.MemoryGateway.Update(ctx, table, values, filters...)
	if err := f.reply("update", table, err); err != nil {
		return nil, 0, err
	}
	return raw, n, nil
}

func (f *flakyGateway) RPC(ctx context.Context, fn string, params interface{}) ([]byte, error) {
	if err := f.check("rpc", fn); err != nil {
		return nil, err
	}
	return f.MemoryGateway.RPC(ctx, fn, params)
}

func (f *flakyGateway) heal(op, table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.broken, op+":"+table)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.ConfirmationEmail
	err  error
}

func (r *recordingSender) SendConfirmation(ctx context.Context, msg mailer.ConfirmationEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) Close() error { return nil }

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	gw       *flakyGateway
	repo     *models.Repo
	metrics  *metrics.PaymentMetrics
	sender   *recordingSender
	ids      *IDGenerator
	ledger   *Ledger
	bookings *BookingService
	orders   *OrderService
	mat      *Materializer
	calls    *CallbackService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := discardLogger()
	gw := newFlakyGateway()
	repo := models.NewRepo(gw)
	m := metrics.NewPaymentMetrics(prometheus.NewRegistry())
	sender := &recordingSender{}

	ids, err := NewIDGenerator()
	if err != nil {
		t.Fatalf("NewIDGenerator: %v", err)
	}
	retry := storage.RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	contacts := NewContactResolver(repo, gw, logger)
	pricing := NewPricingCalculator(repo, repo)
	ledger := NewLedger(repo, logger)
	orders := NewOrderService(repo, repo, repo, repo, pricing, ledger, contacts, ids, retry, testGatewayURL, m, logger)
	poller := NewPoller(repo, 5*time.Millisecond, 60*time.Millisecond, m, logger)
	mat := NewMaterializer(repo, repo, repo, retry, m, logger)
	notifier := NewNotifier(repo, contacts, sender, retry, m, logger)
	calls := NewCallbackService(repo, poller, ledger, mat, notifier, orders, nil, retry, m, logger)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		gw:       gw,
		repo:     repo,
		metrics:  m,
		sender:   sender,
		ids:      ids,
		ledger:   ledger,
		bookings: NewBookingService(repo, repo, repo, contacts, ids, logger),
		orders:   orders,
		mat:      mat,
		calls:    calls,
	}
}

func (h *harness) insert(table string, row map[string]interface{}) {
	h.t.Helper()
	if _, err := h.gw.MemoryGateway.Insert(h.ctx, table, row); err != nil {
		h.t.Fatalf("seed %s: %v", table, err)
	}
}

func (h *harness) seedProfile(id string) {
	h.insert(models.ProfileTable, map[string]interface{}{
		"id":            id,
		"full_name":     "Asha Raman",
		"email":         id + "@example.test",
		"mobile_number": "9876543210",
		"college_name":  "KSRCT",
	})
}

func (h *harness) seedEvent(id, name string, price float64, team bool, maxSize int) {
	h.insert(models.EventsTable, map[string]interface{}{
		"id":            id,
		"name":          name,
		"price":         price,
		"is_team_event": team,
		"min_team_size": 1,
		"max_team_size": maxSize,
		"is_active":     true,
	})
}

func (h *harness) rows(table string, match map[string]interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	for _, r := range h.gw.Rows(table) {
		ok := true
		for k, v := range match {
			if r[k] != v {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, r)
		}
	}
	return out
}

func (h *harness) txn(orderID string) *models.PaymentTransaction {
	h.t.Helper()
	txn, err := h.repo.GetTransaction(h.ctx, orderID)
	if err != nil {
		h.t.Fatalf("GetTransaction(%s): %v", orderID, err)
	}
	return txn
}

func amount(v float64) *float64 { return &v }
