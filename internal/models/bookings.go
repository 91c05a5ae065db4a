package models

import (
	"time"
)

type AccommodationRequest struct {
	ID            string        `json:"id,omitempty"`
	UserID        string        `json:"user_id" validate:"required"`
	FullName      string        `json:"full_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	CollegeName   string        `json:"college_name"`
	Gender        string        `json:"gender"`
	Dates         []string      `json:"accommodation_dates" validate:"required,min=1,dive,required"`
	NumberOfDays  int           `json:"number_of_days"`
	TotalPrice    float64       `json:"total_price"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type LunchBooking struct {
	ID            string        `json:"id,omitempty"`
	UserID        string        `json:"user_id" validate:"required"`
	FullName      string        `json:"full_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone"`
	Dates         []string      `json:"lunch_dates" validate:"required,min=1,dive,required"`
	TotalLunches  int           `json:"total_lunches"`
	TotalPrice    float64       `json:"total_price"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// EventRegistration is one seat for one user at one event. (user_id, event_id) is
// the natural key used by every upsert.
type EventRegistration struct {
	ID              string        `json:"id,omitempty"`
	UserID          string        `json:"user_id"`
	EventID         string        `json:"event_id"`
	EventName       string        `json:"event_name,omitempty"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentAmount   float64       `json:"payment_amount"`
	BatchID         string        `json:"batch_id,omitempty"`
	TransactionID   string        `json:"transaction_id,omitempty"`
	PaymentID       string        `json:"payment_id,omitempty"`
	TeamID          string        `json:"team_id,omitempty"`
	TeamName        string        `json:"team_name,omitempty"`
	ComboPurchaseID string        `json:"combo_purchase_id,omitempty"`
	RegisteredAt    time.Time     `json:"registered_at"`
}

type ComboPurchase struct {
	ID               string        `json:"id,omitempty"`
	UserID           string        `json:"user_id"`
	ComboID          string        `json:"combo_id"`
	ComboName        string        `json:"combo_name,omitempty"`
	SelectedEventIDs []string      `json:"selected_event_ids"`
	TotalAmount      float64       `json:"total_amount"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	PaymentID        *string       `json:"payment_id,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}
