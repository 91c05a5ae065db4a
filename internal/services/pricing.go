package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

const (
	AccommodationPricePerDay = 300.0
	LunchPricePerMeal        = 100.0
)

func AccommodationPrice(days int) float64 {
	return float64(days) * AccommodationPricePerDay
}

func LunchPrice(lunches int) float64 {
	return float64(lunches) * LunchPricePerMeal
}

// TeamQuote is the server-side price of settling a team's unpaid members.
type TeamQuote struct {
	EventID        string
	EventName      string
	TeamName       string
	PricePerMember float64
	TeamSize       int
	PaidMembers    int
	UnpaidMembers  int
	Amount         float64
}

func TeamDue(pricePerMember float64, teamSize, paidMembers int) (int, float64) {
	unpaid := teamSize - paidMembers
	if unpaid < 0 {
		unpaid = 0
	}
	return unpaid, roundAmount(pricePerMember * float64(unpaid))
}

func MixedDue(items []models.MixedItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Amount
	}
	return roundAmount(total)
}

type PricingCalculator struct {
	events   models.EventRepo
	bookings models.BookingRepo
}

func NewPricingCalculator(events models.EventRepo, bookings models.BookingRepo) *PricingCalculator {
	return &PricingCalculator{events: events, bookings: bookings}
}

// QuoteTeam prices a team against the members already PAID for the same
// (event_id, team_name). A team with nobody left to pay is a conflict.
func (p *PricingCalculator) QuoteTeam(ctx context.Context, eventID, teamName string, teamSize int) (*TeamQuote, error) {
	if teamSize <= 0 {
		return nil, validationErr("team_size", "must be at least 1")
	}

	event, err := p.events.GetEvent(ctx, eventID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, notFound("event", eventID)
	}
	if err != nil {
		return nil, err
	}
	if !event.IsTeamEvent {
		return nil, validationErr("event_id", fmt.Sprintf("%s is not a team event", event.Name))
	}
	if event.MaxTeamSize > 0 && teamSize > event.MaxTeamSize {
		return nil, validationErr("members", fmt.Sprintf("team size %d exceeds maximum of %d", teamSize, event.MaxTeamSize))
	}

	paid, err := p.bookings.CountPaidTeamRegistrations(ctx, eventID, teamName)
	if err != nil {
		return nil, err
	}

	unpaid, amount := TeamDue(event.Price, teamSize, int(paid))
	if unpaid == 0 {
		return nil, &ConflictError{Message: "all team members are already registered"}
	}

	return &TeamQuote{
		EventID:        eventID,
		EventName:      event.Name,
		TeamName:       teamName,
		PricePerMember: event.Price,
		TeamSize:       teamSize,
		PaidMembers:    int(paid),
		UnpaidMembers:  unpaid,
		Amount:         amount,
	}, nil
}

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}
