package services

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

func TestTeamDue(t *testing.T) {
	unpaid, due := TeamDue(150, 4, 1)
	if unpaid != 3 || due != 450 {
		t.Errorf("TeamDue(150, 4, 1) = (%d, %v), want (3, 450)", unpaid, due)
	}

	unpaid, due = TeamDue(150, 2, 5)
	if unpaid != 0 || due != 0 {
		t.Errorf("over-paid team should owe nothing, got (%d, %v)", unpaid, due)
	}
}

func TestFixedPrices(t *testing.T) {
	if got := AccommodationPrice(2); got != 600 {
		t.Errorf("AccommodationPrice(2) = %v", got)
	}
	if got := LunchPrice(3); got != 300 {
		t.Errorf("LunchPrice(3) = %v", got)
	}
}

func TestQuoteTeamCountsPaidMembers(t *testing.T) {
	h := newHarness(t)
	h.seedEvent("ev-robo", "Robo Wars", 150, true, 4)
	h.insert(models.RegistrationsTable, map[string]interface{}{
		"user_id":        "m1",
		"event_id":       "ev-robo",
		"team_name":      "Bolt",
		"payment_status": "PAID",
	})

	pricing := NewPricingCalculator(h.repo, h.repo)
	q, err := pricing.QuoteTeam(h.ctx, "ev-robo", "Bolt", 4)
	if err != nil {
		t.Fatalf("QuoteTeam: %v", err)
	}
	if q.UnpaidMembers != 3 || q.Amount != 450 {
		t.Errorf("quote = %d members / %v, want 3 / 450", q.UnpaidMembers, q.Amount)
	}
}

func TestQuoteTeamRejections(t *testing.T) {
	h := newHarness(t)
	h.seedEvent("ev-robo", "Robo Wars", 150, true, 4)
	h.seedEvent("ev-quiz", "Quiz", 100, false, 1)
	h.insert(models.RegistrationsTable, map[string]interface{}{
		"user_id": "m1", "event_id": "ev-robo", "team_name": "Bolt", "payment_status": "PAID",
	})
	h.insert(models.RegistrationsTable, map[string]interface{}{
		"user_id": "m2", "event_id": "ev-robo", "team_name": "Bolt", "payment_status": "PAID",
	})
	pricing := NewPricingCalculator(h.repo, h.repo)

	_, err := pricing.QuoteTeam(h.ctx, "ev-robo", "Bolt", 2)
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.StatusCode() != http.StatusConflict {
		t.Errorf("fully paid team: expected 409 conflict, got %v", err)
	}

	_, err = pricing.QuoteTeam(h.ctx, "ev-quiz", "Solo", 1)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("non-team event: expected validation error, got %v", err)
	}

	_, err = pricing.QuoteTeam(h.ctx, "ev-robo", "Huge", 5)
	if !errors.As(err, &ve) {
		t.Errorf("oversized team: expected validation error, got %v", err)
	}

	_, err = pricing.QuoteTeam(h.ctx, "ev-missing", "X", 1)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing event: expected not found, got %v", err)
	}
}
