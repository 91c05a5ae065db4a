package models

import (
	"context"
	"fmt"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

type EventConfig struct {
	ID          string  `json:"id"`
	EventKey    string  `json:"event_key,omitempty"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	IsTeamEvent bool    `json:"is_team_event"`
	MinTeamSize int     `json:"min_team_size"`
	MaxTeamSize int     `json:"max_team_size"`
	IsActive    bool    `json:"is_active"`
}

type EventRepo interface {
	GetEvent(ctx context.Context, id string) (*EventConfig, error)
	ListEvents(ctx context.Context, ids []string) ([]EventConfig, error)
}

func (r *Repo) GetEvent(ctx context.Context, id string) (*EventConfig, error) {
	raw, err := r.gw.Select(ctx, EventsTable, "*", storage.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return decodeFirst[EventConfig](raw, "event "+id)
}

func (r *Repo) ListEvents(ctx context.Context, ids []string) ([]EventConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw, err := r.gw.Select(ctx, EventsTable, "*", storage.In("id", ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return decodeRows[EventConfig](raw)
}
