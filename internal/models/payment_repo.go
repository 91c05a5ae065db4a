package models

import (
	"context"
	"fmt"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

type PaymentRepo interface {
	CreateTransaction(ctx context.Context, txn *PaymentTransaction) error
	GetTransaction(ctx context.Context, orderID string) (*PaymentTransaction, error)
	TransitionTransaction(ctx context.Context, orderID string, update TransactionUpdate) (bool, error)
	ListStaleTransactions(ctx context.Context, before time.Time) ([]PaymentTransaction, error)
}

func (r *Repo) CreateTransaction(ctx context.Context, txn *PaymentTransaction) error {
	if txn.OrderID == "" {
		return fmt.Errorf("order_id is required")
	}

	raw, err := r.gw.Insert(ctx, PaymentTransactionsTable, txn)
	if err != nil {
		return fmt.Errorf("failed to create payment transaction %s: %w", txn.OrderID, err)
	}

	created, err := decodeRows[PaymentTransaction](raw)
	if err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("no payment transaction returned after insert for %s", txn.OrderID)
	}
	return nil
}

func (r *Repo) GetTransaction(ctx context.Context, orderID string) (*PaymentTransaction, error) {
	raw, err := r.gw.Select(ctx, PaymentTransactionsTable, "*", storage.Eq("order_id", orderID))
	if err != nil {
		return nil, fmt.Errorf("failed to get payment transaction %s: %w", orderID, err)
	}
	return decodeFirst[PaymentTransaction](raw, "payment transaction "+orderID)
}

// TransitionTransaction moves the row out of INITIATED. It returns false when the
// row was already transitioned by a concurrent callback.
func (r *Repo) TransitionTransaction(ctx context.Context, orderID string, update TransactionUpdate) (bool, error) {
	_, count, err := r.gw.Update(ctx, PaymentTransactionsTable, update.values(),
		storage.Eq("order_id", orderID),
		storage.Eq("status", TxnInitiated),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update payment transaction %s: %w", orderID, err)
	}
	return count > 0, nil
}

func (r *Repo) ListStaleTransactions(ctx context.Context, before time.Time) ([]PaymentTransaction, error) {
	raw, err := r.gw.Select(ctx, PaymentTransactionsTable, "*",
		storage.Eq("status", TxnInitiated),
		storage.Lt("created_at", before.UTC().Format(time.RFC3339Nano)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale transactions: %w", err)
	}
	return decodeRows[PaymentTransaction](raw)
}
