package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/metrics"
	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

const (
	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 5 * time.Second
)

// Poller waits for the webhook to settle an order a redirect is asking about.
type Poller struct {
	payments models.PaymentRepo
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.PaymentMetrics
	logger   *slog.Logger
}

func NewPoller(payments models.PaymentRepo, interval, timeout time.Duration, m *metrics.PaymentMetrics, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Poller{
		payments: payments,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

// Wait polls the transaction until it is SUCCESS or FAILED or the poll deadline
// passes, and returns the last row it read. The deadline is derived from ctx, so
// a cancelled request stops the wait and its error is returned.
func (p *Poller) Wait(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last *models.PaymentTransaction
	for {
		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return last, err
			}
			p.observe(start, false)
			p.logger.Info("Convergence wait timed out", "order_id", orderID, "waited", time.Since(start).String())
			return last, nil
		case <-ticker.C:
		}

		txn, err := p.payments.GetTransaction(waitCtx, orderID)
		switch {
		case err == nil:
			last = txn
			if txn.Status.Settled() {
				p.observe(start, true)
				return txn, nil
			}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			// the select above reports the deadline on the next turn
		default:
			p.logger.Warn("Convergence poll failed", "order_id", orderID, "error", err)
		}
	}
}

func (p *Poller) observe(start time.Time, settled bool) {
	if p.metrics != nil {
		p.metrics.RecordConvergenceWait(time.Since(start).Seconds(), settled)
	}
}
