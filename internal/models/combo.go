package models

import (
	"context"
	"fmt"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// Combo is a priced package of events. Read-only here.
type Combo struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	IsActive    bool    `json:"is_active"`
	EventCount  int     `json:"event_count"`
	Description string  `json:"description,omitempty"`
}

type ComboRepo interface {
	GetCombo(ctx context.Context, id string) (*Combo, error)
}

func (r *Repo) GetCombo(ctx context.Context, id string) (*Combo, error) {
	raw, err := r.gw.Select(ctx, CombosTable, "*", storage.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get combo %s: %w", id, err)
	}
	return decodeFirst[Combo](raw, "combo "+id)
}
