package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

var ErrNotFound = errors.New("record not found")

const (
	PaymentTransactionsTable = "payment_transactions"
	AccommodationTable       = "accommodation_requests"
	LunchTable               = "lunch_bookings"
	RegistrationsTable       = "event_registrations_config"
	ComboPurchasesTable      = "combo_purchases"
	TeamsTable               = "teams"
	TeamMembersTable         = "team_members"
	CreditsTable             = "insufficient_amount_credits"
	ProfileTable             = "profiles"
	EventsTable              = "events_config"
	AdminNotificationsTable  = "admin_notifications"
	CombosTable              = "combos"
)

// Repo groups the table accessors. All of them go through the storage gateway,
// one statement per call.
type Repo struct {
	gw storage.Gateway
}

func NewRepo(gw storage.Gateway) *Repo {
	return &Repo{gw: gw}
}

func decodeRows[T any](raw []byte) ([]T, error) {
	var rows []T
	if len(raw) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %v", err)
	}
	return rows, nil
}

// decodeFirst returns ErrNotFound when the result set is empty.
func decodeFirst[T any](raw []byte, what string) (*T, error) {
	rows, err := decodeRows[T](raw)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return &rows[0], nil
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
}

func MongodbNewRepo(mongodbClient *mongo.Client) *MongodbRepo {
	return &MongodbRepo{
		mongodbClient: mongodbClient,
	}
}
