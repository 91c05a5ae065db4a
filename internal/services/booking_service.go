package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

type AccommodationInput struct {
	UserID string   `json:"user_id" validate:"required"`
	Gender string   `json:"gender"`
	Dates  []string `json:"dates" validate:"required,min=1,dive,required"`
}

type LunchInput struct {
	UserID string   `json:"user_id" validate:"required"`
	Dates  []string `json:"dates" validate:"required,min=1,dive,required"`
}

type EventRegistrationInput struct {
	UserID   string   `json:"user_id" validate:"required"`
	EventIDs []string `json:"event_ids" validate:"required,min=1,dive,required"`
}

type ComboPurchaseInput struct {
	UserID   string   `json:"user_id" validate:"required"`
	ComboID  string   `json:"combo_id" validate:"required"`
	EventIDs []string `json:"event_ids" validate:"required,min=1,dive,required"`
}

// EventBooking is what the event checkout pays for: one registration id or a
// batch id covering several.
type EventBooking struct {
	BookingID     string                     `json:"booking_id"`
	BatchID       string                     `json:"batch_id,omitempty"`
	TotalAmount   float64                    `json:"total_amount"`
	Registrations []models.EventRegistration `json:"registrations"`
}

// BookingService creates PENDING bookings ahead of payment.
type BookingService struct {
	bookings models.BookingRepo
	events   models.EventRepo
	combos   models.ComboRepo
	contacts *ContactResolver
	ids      *IDGenerator
	logger   *slog.Logger
}

func NewBookingService(
	bookings models.BookingRepo,
	events models.EventRepo,
	combos models.ComboRepo,
	contacts *ContactResolver,
	ids *IDGenerator,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		events:   events,
		combos:   combos,
		contacts: contacts,
		ids:      ids,
		logger:   logger,
	}
}

func (bs *BookingService) CreateAccommodation(ctx context.Context, in AccommodationInput) (*models.AccommodationRequest, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	dates := uniqueStrings(in.Dates)

	existing, err := bs.bookings.FindAccommodationByUser(ctx, in.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Message: "accommodation already booked", Code: 400}
	}

	profile, err := bs.contacts.Resolve(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	req := &models.AccommodationRequest{
		UserID:        in.UserID,
		FullName:      profile.FullName,
		Email:         profile.Email,
		Phone:         profile.MobileNumber,
		CollegeName:   profile.CollegeName,
		Gender:        firstNonEmpty(in.Gender, profile.Gender),
		Dates:         dates,
		NumberOfDays:  len(dates),
		TotalPrice:    AccommodationPrice(len(dates)),
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now().UTC(),
	}

	created, err := bs.bookings.CreateAccommodation(ctx, req)
	if err != nil {
		return nil, err
	}
	bs.logger.Info("Accommodation booking created",
		"booking_id", created.ID,
		"user_id", in.UserID,
		"days", created.NumberOfDays,
		"total_price", created.TotalPrice,
	)
	return created, nil
}

func (bs *BookingService) CreateLunch(ctx context.Context, in LunchInput) (*models.LunchBooking, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	dates := uniqueStrings(in.Dates)

	existing, err := bs.bookings.FindLunchByUser(ctx, in.UserID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &ConflictError{Message: "lunch already booked", Code: 400}
	}

	profile, err := bs.contacts.Resolve(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	booking := &models.LunchBooking{
		UserID:        in.UserID,
		FullName:      profile.FullName,
		Email:         profile.Email,
		Phone:         profile.MobileNumber,
		Dates:         dates,
		TotalLunches:  len(dates),
		TotalPrice:    LunchPrice(len(dates)),
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now().UTC(),
	}

	created, err := bs.bookings.CreateLunch(ctx, booking)
	if err != nil {
		return nil, err
	}
	bs.logger.Info("Lunch booking created",
		"booking_id", created.ID,
		"user_id", in.UserID,
		"lunches", created.TotalLunches,
		"total_price", created.TotalPrice,
	)
	return created, nil
}

// CreateEventRegistrations writes one PENDING registration per event. Several
// events share a batch id, which becomes the booking id of the checkout.
func (bs *BookingService) CreateEventRegistrations(ctx context.Context, in EventRegistrationInput) (*EventBooking, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	eventIDs := uniqueStrings(in.EventIDs)

	events, err := bs.loadEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if e.IsTeamEvent {
			return nil, validationErr("event_ids", fmt.Sprintf("%s is a team event, register it as a team", e.Name))
		}
	}
	if err := bs.rejectPaid(ctx, in.UserID, eventIDs, events); err != nil {
		return nil, err
	}

	booking := &EventBooking{}
	if len(eventIDs) > 1 {
		booking.BatchID = bs.ids.BatchID()
		booking.BookingID = booking.BatchID
	}

	now := time.Now().UTC()
	for _, id := range eventIDs {
		e := events[id]
		reg := &models.EventRegistration{
			UserID:        in.UserID,
			EventID:       id,
			EventName:     e.Name,
			PaymentStatus: models.PaymentPending,
			PaymentAmount: e.Price,
			BatchID:       booking.BatchID,
			RegisteredAt:  now,
		}
		if err := bs.bookings.UpsertRegistration(ctx, reg); err != nil {
			return nil, err
		}
		booking.TotalAmount += e.Price
	}
	booking.TotalAmount = roundAmount(booking.TotalAmount)

	if booking.BatchID != "" {
		regs, err := bs.bookings.ListRegistrationsByBatch(ctx, booking.BatchID, in.UserID)
		if err != nil {
			return nil, err
		}
		booking.Registrations = regs
	} else {
		reg, err := bs.bookings.FindRegistration(ctx, in.UserID, eventIDs[0])
		if err != nil {
			return nil, err
		}
		booking.BookingID = reg.ID
		booking.Registrations = []models.EventRegistration{*reg}
	}

	bs.logger.Info("Event registrations created",
		"booking_id", booking.BookingID,
		"user_id", in.UserID,
		"events", len(eventIDs),
		"total_amount", booking.TotalAmount,
	)
	return booking, nil
}

func (bs *BookingService) CreateComboPurchase(ctx context.Context, in ComboPurchaseInput) (*models.ComboPurchase, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	eventIDs := uniqueStrings(in.EventIDs)

	combo, err := bs.combos.GetCombo(ctx, in.ComboID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("combo", in.ComboID)
	}
	if err != nil {
		return nil, err
	}
	if !combo.IsActive {
		return nil, validationErr("combo_id", "combo is not available")
	}
	if combo.EventCount > 0 && len(eventIDs) != combo.EventCount {
		return nil, validationErr("event_ids", fmt.Sprintf("combo %s requires exactly %d events", combo.Name, combo.EventCount))
	}

	events, err := bs.loadEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	if err := bs.rejectPaid(ctx, in.UserID, eventIDs, events); err != nil {
		return nil, err
	}

	purchase := &models.ComboPurchase{
		UserID:           in.UserID,
		ComboID:          combo.ID,
		ComboName:        combo.Name,
		SelectedEventIDs: eventIDs,
		TotalAmount:      combo.Price,
		PaymentStatus:    models.PaymentPending,
		CreatedAt:        time.Now().UTC(),
	}
	created, err := bs.bookings.CreateComboPurchase(ctx, purchase)
	if err != nil {
		return nil, err
	}
	bs.logger.Info("Combo purchase created",
		"booking_id", created.ID,
		"user_id", in.UserID,
		"combo_id", combo.ID,
		"events", len(eventIDs),
	)
	return created, nil
}

func (bs *BookingService) loadEvents(ctx context.Context, ids []string) (map[string]models.EventConfig, error) {
	list, err := bs.events.ListEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.EventConfig, len(list))
	for _, e := range list {
		byID[e.ID] = e
	}
	for _, id := range ids {
		e, ok := byID[id]
		if !ok {
			return nil, notFound("event", id)
		}
		if !e.IsActive {
			return nil, validationErr("event_ids", fmt.Sprintf("%s is closed for registration", e.Name))
		}
	}
	return byID, nil
}

func (bs *BookingService) rejectPaid(ctx context.Context, userID string, ids []string, events map[string]models.EventConfig) error {
	for _, id := range ids {
		reg, err := bs.bookings.FindRegistration(ctx, userID, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if reg.PaymentStatus == models.PaymentPaid {
			return &ConflictError{Message: fmt.Sprintf("already registered for %s", events[id].Name), Code: 400}
		}
	}
	return nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
