package services

import (
	"context"
	"log/slog"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

// MinimumCharge is the floor of any credit-adjusted order.
const MinimumCharge = 1.0

// ApplyCredit returns the amount to charge and how much of credit it consumed.
func ApplyCredit(base, credit float64) (final, used float64) {
	if credit <= 0 {
		return base, 0
	}
	final = base - credit
	if final < MinimumCharge {
		final = MinimumCharge
	}
	used = base - final
	if used < 0 {
		used = 0
	}
	return roundAmount(final), roundAmount(used)
}

// Ledger tracks under-payment credit per user.
type Ledger struct {
	credits models.CreditRepo
	logger  *slog.Logger
}

func NewLedger(credits models.CreditRepo, logger *slog.Logger) *Ledger {
	return &Ledger{credits: credits, logger: logger}
}

// Apply prices base against the user's stored credit. The credit row itself is
// only cleared once an order settles in full.
func (l *Ledger) Apply(ctx context.Context, userID string, base float64) (final, used float64, err error) {
	credit, err := l.credits.GetCredit(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	final, used = ApplyCredit(base, credit)
	if used > 0 {
		l.logger.Info("Applied partial payment credit",
			"user_id", userID,
			"base_amount", base,
			"credit", credit,
			"final_amount", final,
		)
	}
	return final, used, nil
}

// RecordPartial adds what orderID actually received to the user's credit. The
// same order is never counted twice.
func (l *Ledger) RecordPartial(ctx context.Context, userID, orderID string, received float64) (float64, error) {
	total, err := l.credits.AddCredit(ctx, userID, orderID, received)
	if err != nil {
		return 0, err
	}
	l.logger.Info("Recorded partial payment credit", "user_id", userID, "order_id", orderID, "received", received, "credit", total)
	return total, nil
}

func (l *Ledger) Clear(ctx context.Context, userID string) error {
	return l.credits.ClearCredit(ctx, userID)
}
