package models

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// InsufficientAmountCredit is the under-payment carried forward for one user.
// OrderIDs lists the partial orders already counted into CreditAmount.
type InsufficientAmountCredit struct {
	ID           string    `json:"id,omitempty"`
	UserID       string    `json:"user_id"`
	CreditAmount float64   `json:"credit_amount"`
	OrderIDs     []string  `json:"order_ids"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreditRepo interface {
	GetCredit(ctx context.Context, userID string) (float64, error)
	AddCredit(ctx context.Context, userID, orderID string, amount float64) (float64, error)
	ClearCredit(ctx context.Context, userID string) error
}

func (r *Repo) getCreditRow(ctx context.Context, userID string) (*InsufficientAmountCredit, error) {
	raw, err := r.gw.Select(ctx, CreditsTable, "*", storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read credit for user %s: %w", userID, err)
	}
	credit, err := decodeFirst[InsufficientAmountCredit](raw, "credit for user "+userID)
	if errors.Is(err, ErrNotFound) {
		return &InsufficientAmountCredit{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	if credit.CreditAmount < 0 {
		credit.CreditAmount = 0
	}
	return credit, nil
}

// GetCredit returns 0 when the user has no credit row.
func (r *Repo) GetCredit(ctx context.Context, userID string) (float64, error) {
	credit, err := r.getCreditRow(ctx, userID)
	if err != nil {
		return 0, err
	}
	return credit.CreditAmount, nil
}

// AddCredit creates the row on the first partial payment and increments it
// after. Each order is counted once, so retrying a write whose reply was lost
// leaves the balance unchanged.
func (r *Repo) AddCredit(ctx context.Context, userID, orderID string, amount float64) (float64, error) {
	current, err := r.getCreditRow(ctx, userID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 || slices.Contains(current.OrderIDs, orderID) {
		return current.CreditAmount, nil
	}

	total := current.CreditAmount + amount
	row := InsufficientAmountCredit{
		UserID:       userID,
		CreditAmount: total,
		OrderIDs:     append(slices.Clone(current.OrderIDs), orderID),
		UpdatedAt:    time.Now().UTC(),
	}
	if _, err := r.gw.Upsert(ctx, CreditsTable, row, "user_id"); err != nil {
		return 0, fmt.Errorf("failed to store credit for user %s: %w", userID, err)
	}
	return total, nil
}

func (r *Repo) ClearCredit(ctx context.Context, userID string) error {
	if _, err := r.gw.Delete(ctx, CreditsTable, storage.Eq("user_id", userID)); err != nil {
		return fmt.Errorf("failed to clear credit for user %s: %w", userID, err)
	}
	return nil
}
