package models

import (
	"context"
	"fmt"
	"time"
)

const (
	NotifyNewRegistration      = "NEW_REGISTRATION"
	NotifyNewComboRegistration = "NEW_COMBO_REGISTRATION"
	NotifyNewAccommodation     = "NEW_ACCOMMODATION"
	NotifyNewLunchBooking      = "NEW_LUNCH_BOOKING"
	NotifyNewTeamRegistration  = "NEW_TEAM_REGISTRATION"
)

type AdminNotification struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
}

type NotificationRepo interface {
	CreateNotification(ctx context.Context, n *AdminNotification) error
}

func (r *Repo) CreateNotification(ctx context.Context, n *AdminNotification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := r.gw.Insert(ctx, AdminNotificationsTable, n); err != nil {
		return fmt.Errorf("failed to create %s notification: %w", n.Type, err)
	}
	return nil
}
