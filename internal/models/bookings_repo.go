package models

import (
	"context"
	"fmt"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

type BookingRepo interface {
	CreateAccommodation(ctx context.Context, req *AccommodationRequest) (*AccommodationRequest, error)
	FindAccommodationByUser(ctx context.Context, userID string) (*AccommodationRequest, error)
	GetAccommodation(ctx context.Context, id, userID string) (*AccommodationRequest, error)
	CreateLunch(ctx context.Context, booking *LunchBooking) (*LunchBooking, error)
	FindLunchByUser(ctx context.Context, userID string) (*LunchBooking, error)
	GetLunch(ctx context.Context, id, userID string) (*LunchBooking, error)
	GetRegistration(ctx context.Context, id, userID string) (*EventRegistration, error)
	ListRegistrationsByBatch(ctx context.Context, batchID, userID string) ([]EventRegistration, error)
	FindRegistration(ctx context.Context, userID, eventID string) (*EventRegistration, error)
	ListPaidTeamRegistrations(ctx context.Context, eventID, teamName string) ([]EventRegistration, error)
	CountPaidTeamRegistrations(ctx context.Context, eventID, teamName string) (int64, error)
	UpsertRegistration(ctx context.Context, reg *EventRegistration) error
	CreateComboPurchase(ctx context.Context, purchase *ComboPurchase) (*ComboPurchase, error)
	GetComboPurchase(ctx context.Context, id string) (*ComboPurchase, error)
	SetPaymentStatus(ctx context.Context, table, id, userID string, status PaymentStatus, paymentID string) (int64, error)
	SetBatchPaymentStatus(ctx context.Context, batchID, userID string, status PaymentStatus, orderID, paymentID string) (int64, error)
}

func (r *Repo) CreateAccommodation(ctx context.Context, req *AccommodationRequest) (*AccommodationRequest, error) {
	raw, err := r.gw.Insert(ctx, AccommodationTable, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create accommodation request: %w", err)
	}
	return decodeFirst[AccommodationRequest](raw, "created accommodation request")
}

func (r *Repo) FindAccommodationByUser(ctx context.Context, userID string) (*AccommodationRequest, error) {
	raw, err := r.gw.Select(ctx, AccommodationTable, "*", storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to look up accommodation for user %s: %w", userID, err)
	}
	return decodeFirst[AccommodationRequest](raw, "accommodation for user "+userID)
}

func (r *Repo) GetAccommodation(ctx context.Context, id, userID string) (*AccommodationRequest, error) {
	raw, err := r.gw.Select(ctx, AccommodationTable, "*", storage.Eq("id", id), storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get accommodation %s: %w", id, err)
	}
	return decodeFirst[AccommodationRequest](raw, "accommodation "+id)
}

func (r *Repo) CreateLunch(ctx context.Context, booking *LunchBooking) (*LunchBooking, error) {
	raw, err := r.gw.Insert(ctx, LunchTable, booking)
	if err != nil {
		return nil, fmt.Errorf("failed to create lunch booking: %w", err)
	}
	return decodeFirst[LunchBooking](raw, "created lunch booking")
}

func (r *Repo) FindLunchByUser(ctx context.Context, userID string) (*LunchBooking, error) {
	raw, err := r.gw.Select(ctx, LunchTable, "*", storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to look up lunch booking for user %s: %w", userID, err)
	}
	return decodeFirst[LunchBooking](raw, "lunch booking for user "+userID)
}

func (r *Repo) GetLunch(ctx context.Context, id, userID string) (*LunchBooking, error) {
	raw, err := r.gw.Select(ctx, LunchTable, "*", storage.Eq("id", id), storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get lunch booking %s: %w", id, err)
	}
	return decodeFirst[LunchBooking](raw, "lunch booking "+id)
}

func (r *Repo) GetRegistration(ctx context.Context, id, userID string) (*EventRegistration, error) {
	raw, err := r.gw.Select(ctx, RegistrationsTable, "*", storage.Eq("id", id), storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get event registration %s: %w", id, err)
	}
	return decodeFirst[EventRegistration](raw, "event registration "+id)
}

func (r *Repo) ListRegistrationsByBatch(ctx context.Context, batchID, userID string) ([]EventRegistration, error) {
	raw, err := r.gw.Select(ctx, RegistrationsTable, "*", storage.Eq("batch_id", batchID), storage.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations for batch %s: %w", batchID, err)
	}
	return decodeRows[EventRegistration](raw)
}

func (r *Repo) FindRegistration(ctx context.Context, userID, eventID string) (*EventRegistration, error) {
	raw, err := r.gw.Select(ctx, RegistrationsTable, "*", storage.Eq("user_id", userID), storage.Eq("event_id", eventID))
	if err != nil {
		return nil, fmt.Errorf("failed to look up registration of %s for %s: %w", userID, eventID, err)
	}
	return decodeFirst[EventRegistration](raw, "registration of "+userID+" for "+eventID)
}

func (r *Repo) ListPaidTeamRegistrations(ctx context.Context, eventID, teamName string) ([]EventRegistration, error) {
	raw, err := r.gw.Select(ctx, RegistrationsTable, "user_id,event_id,team_name,payment_status",
		storage.Eq("event_id", eventID),
		storage.Eq("team_name", teamName),
		storage.Eq("payment_status", PaymentPaid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid registrations for team %q: %w", teamName, err)
	}
	return decodeRows[EventRegistration](raw)
}

func (r *Repo) CountPaidTeamRegistrations(ctx context.Context, eventID, teamName string) (int64, error) {
	count, err := r.gw.Count(ctx, RegistrationsTable,
		storage.Eq("event_id", eventID),
		storage.Eq("team_name", teamName),
		storage.Eq("payment_status", PaymentPaid),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count paid registrations for team %q: %w", teamName, err)
	}
	return count, nil
}

func (r *Repo) UpsertRegistration(ctx context.Context, reg *EventRegistration) error {
	if _, err := r.gw.Upsert(ctx, RegistrationsTable, reg, "user_id,event_id"); err != nil {
		return fmt.Errorf("failed to upsert registration of %s for %s: %w", reg.UserID, reg.EventID, err)
	}
	return nil
}

func (r *Repo) CreateComboPurchase(ctx context.Context, purchase *ComboPurchase) (*ComboPurchase, error) {
	raw, err := r.gw.Insert(ctx, ComboPurchasesTable, purchase)
	if err != nil {
		return nil, fmt.Errorf("failed to create combo purchase: %w", err)
	}
	return decodeFirst[ComboPurchase](raw, "created combo purchase")
}

func (r *Repo) GetComboPurchase(ctx context.Context, id string) (*ComboPurchase, error) {
	raw, err := r.gw.Select(ctx, ComboPurchasesTable, "*", storage.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get combo purchase %s: %w", id, err)
	}
	return decodeFirst[ComboPurchase](raw, "combo purchase "+id)
}

// SetPaymentStatus updates one booking row keyed by (id, user_id). Rows already
// PAID are never moved to another status.
func (r *Repo) SetPaymentStatus(ctx context.Context, table, id, userID string, status PaymentStatus, paymentID string) (int64, error) {
	values := map[string]interface{}{
		"payment_status": status,
	}
	if paymentID != "" {
		values["payment_id"] = paymentID
	}

	filters := []storage.Filter{storage.Eq("id", id), storage.Eq("user_id", userID)}
	if status != PaymentPaid {
		filters = append(filters, storage.Neq("payment_status", PaymentPaid))
	}

	_, count, err := r.gw.Update(ctx, table, values, filters...)
	if err != nil {
		return 0, fmt.Errorf("failed to set %s %s to %s: %w", table, id, status, err)
	}
	return count, nil
}

func (r *Repo) SetBatchPaymentStatus(ctx context.Context, batchID, userID string, status PaymentStatus, orderID, paymentID string) (int64, error) {
	values := map[string]interface{}{
		"payment_status": status,
		"transaction_id": orderID,
	}
	if paymentID != "" {
		values["payment_id"] = paymentID
	}

	filters := []storage.Filter{storage.Eq("batch_id", batchID), storage.Eq("user_id", userID)}
	if status != PaymentPaid {
		filters = append(filters, storage.Neq("payment_status", PaymentPaid))
	}

	_, count, err := r.gw.Update(ctx, RegistrationsTable, values, filters...)
	if err != nil {
		return 0, fmt.Errorf("failed to set batch %s to %s: %w", batchID, status, err)
	}
	return count, nil
}
