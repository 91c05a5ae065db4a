package models

import (
	"net/url"
	"strconv"
	"time"
)

type BookingType string

const (
	BookingAccommodation BookingType = "accommodation"
	BookingLunch         BookingType = "lunch"
	BookingEvent         BookingType = "event"
	BookingCombo         BookingType = "combo"
	BookingTeam          BookingType = "team"
	BookingMixed         BookingType = "mixed_registration"
)

var bookingTypes = []BookingType{
	BookingAccommodation,
	BookingLunch,
	BookingEvent,
	BookingCombo,
	BookingTeam,
	BookingMixed,
}

func ParseBookingType(s string) (BookingType, bool) {
	for _, bt := range bookingTypes {
		if string(bt) == s {
			return bt, true
		}
	}
	return "", false
}

// RequiresBookingID is false for kinds whose booking can be created at initiation.
func (b BookingType) RequiresBookingID() bool {
	return b != BookingTeam && b != BookingMixed
}

type TxnStatus string

const (
	TxnInitiated TxnStatus = "INITIATED"
	TxnSuccess   TxnStatus = "SUCCESS"
	TxnFailed    TxnStatus = "FAILED"
	TxnPending   TxnStatus = "PENDING"
)

// Settled reports whether the status ends the convergence wait.
func (s TxnStatus) Settled() bool {
	return s == TxnSuccess || s == TxnFailed
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

type PaymentTransaction struct {
	OrderID         string                 `json:"order_id"`
	UserID          string                 `json:"user_id"`
	BookingID       string                 `json:"booking_id"`
	BookingType     BookingType            `json:"booking_type"`
	Amount          float64                `json:"amount"`
	Status          TxnStatus              `json:"status"`
	GatewayPayload  GatewayPayload         `json:"gateway_payload"`
	TransactionID   *string                `json:"transaction_id"`
	GatewayResponse map[string]interface{} `json:"gateway_response,omitempty"`
	Error           *string                `json:"error,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	CompletedAt     *time.Time             `json:"completed_at"`
}

// GatewayPayload carries the gateway fields plus everything needed to replay
// materialization later.
type GatewayPayload struct {
	DueAmount  float64 `json:"dueamount"`
	RegNo      string  `json:"regno"`
	AppOrderID string  `json:"apporderid"`
	FullName   string  `json:"fullname"`
	EmailID    string  `json:"emailid"`
	MobileNo   string  `json:"mobileno"`
	College    string  `json:"clg"`
	EventName  string  `json:"eventname"`

	OriginalAmount float64 `json:"original_amount"`
	CreditUsed     float64 `json:"credit_used"`
	ParentOrderID  string  `json:"parent_order_id,omitempty"`

	Team  *TeamSettlement  `json:"team,omitempty"`
	Combo *ComboSettlement `json:"combo,omitempty"`
	Mixed []MixedItem      `json:"mixed,omitempty"`
}

// Query encodes the fields the gateway reads from the redirect URL.
func (p GatewayPayload) Query() url.Values {
	q := url.Values{}
	q.Set("dueamount", strconv.FormatFloat(p.DueAmount, 'f', 2, 64))
	q.Set("regno", p.RegNo)
	q.Set("apporderid", p.AppOrderID)
	q.Set("fullname", p.FullName)
	q.Set("emailid", p.EmailID)
	q.Set("mobileno", p.MobileNo)
	q.Set("clg", p.College)
	q.Set("eventname", p.EventName)
	return q
}

type TeamSettlement struct {
	TeamID         string  `json:"team_id"`
	EventID        string  `json:"event_id"`
	EventName      string  `json:"event_name"`
	TeamName       string  `json:"team_name"`
	PricePerMember float64 `json:"price_per_member"`
	UnpaidMembers  int     `json:"unpaid_members"`
}

type ComboSettlement struct {
	PurchaseID       string            `json:"purchase_id"`
	ComboID          string            `json:"combo_id"`
	SelectedEventIDs []string          `json:"selected_event_ids"`
	TeamIDs          map[string]string `json:"team_ids,omitempty"`
}

type MixedItemKind string

const (
	MixedIndividual MixedItemKind = "individual"
	MixedTeam       MixedItemKind = "team"
)

type MixedItem struct {
	Kind          MixedItemKind `json:"kind"`
	EventID       string        `json:"event_id"`
	EventName     string        `json:"event_name"`
	TeamID        string        `json:"team_id,omitempty"`
	TeamName      string        `json:"team_name,omitempty"`
	Amount        float64       `json:"amount"`
	UnpaidMembers int           `json:"unpaid_members,omitempty"`
}

// TransactionUpdate is the single write that moves a transaction out of INITIATED.
type TransactionUpdate struct {
	Status          TxnStatus
	TransactionID   string
	GatewayResponse map[string]interface{}
	Error           string
	CompletedAt     *time.Time
}

func (u TransactionUpdate) values() map[string]interface{} {
	values := map[string]interface{}{
		"status": u.Status,
	}
	if u.TransactionID != "" {
		values["transaction_id"] = u.TransactionID
	}
	if u.GatewayResponse != nil {
		values["gateway_response"] = u.GatewayResponse
	}
	if u.Error != "" {
		values["error"] = u.Error
	}
	if u.CompletedAt != nil {
		values["completed_at"] = u.CompletedAt.UTC()
	}
	return values
}
