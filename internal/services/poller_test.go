package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

func TestPollerReturnsSettledRow(t *testing.T) {
	h := newHarness(t)
	h.insert(models.PaymentTransactionsTable, map[string]interface{}{
		"order_id": "ORDER_done", "status": "SUCCESS", "amount": 100.0,
	})
	p := NewPoller(h.repo, 5*time.Millisecond, time.Second, h.metrics, discardLogger())

	start := time.Now()
	txn, err := p.Wait(h.ctx, "ORDER_done")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if txn == nil || txn.Status != models.TxnSuccess {
		t.Fatalf("txn = %+v", txn)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("a settled row should end the wait on the first poll")
	}
}

func TestPollerTimesOutWithLastRow(t *testing.T) {
	h := newHarness(t)
	h.insert(models.PaymentTransactionsTable, map[string]interface{}{
		"order_id": "ORDER_open", "status": "INITIATED", "amount": 100.0,
	})
	p := NewPoller(h.repo, 5*time.Millisecond, 30*time.Millisecond, h.metrics, discardLogger())

	txn, err := p.Wait(h.ctx, "ORDER_open")
	if err != nil {
		t.Fatalf("a poll timeout is not an error, got %v", err)
	}
	if txn == nil || txn.Status != models.TxnInitiated {
		t.Errorf("expected the last INITIATED row, got %+v", txn)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.insert(models.PaymentTransactionsTable, map[string]interface{}{
		"order_id": "ORDER_open", "status": "INITIATED", "amount": 100.0,
	})
	p := NewPoller(h.repo, 5*time.Millisecond, time.Minute, h.metrics, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := p.Wait(ctx, "ORDER_open")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPollerDefaults(t *testing.T) {
	p := NewPoller(nil, 0, -1, nil, discardLogger())
	if p.interval != DefaultPollInterval || p.timeout != DefaultPollTimeout {
		t.Errorf("defaults = %v/%v", p.interval, p.timeout)
	}
}
