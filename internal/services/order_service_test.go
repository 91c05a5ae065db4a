package services

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

func TestInitiateAppliesCredit(t *testing.T) {
	h := newHarness(t)
	h.seedProfile("u1")

	booking, err := h.bookings.CreateAccommodation(h.ctx, AccommodationInput{UserID: "u1", Dates: []string{"2026-03-05", "2026-03-06"}})
	if err != nil {
		t.Fatalf("CreateAccommodation: %v", err)
	}
	if booking.TotalPrice != 600 {
		t.Fatalf("accommodation price = %v, want 600", booking.TotalPrice)
	}
	if _, err := h.repo.AddCredit(h.ctx, "u1", "ORDER_prev", 480); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	res, err := h.orders.Initiate(h.ctx, InitiateRequest{
		UserID:      "u1",
		BookingType: string(models.BookingAccommodation),
		BookingID:   booking.ID,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.Amount != 120 || res.CreditUsed != 480 || res.OriginalAmount != 600 {
		t.Errorf("result = %+v, want amount 120 with 480 credit on 600", res)
	}
	if !strings.HasPrefix(res.OrderID, "ORDER_") || !strings.HasSuffix(res.OrderID, "_"+booking.ID[:8]) {
		t.Errorf("unexpected order id %q", res.OrderID)
	}

	u, err := url.Parse(res.PaymentURL)
	if err != nil {
		t.Fatalf("payment url: %v", err)
	}
	q := u.Query()
	if q.Get("apporderid") != res.OrderID || q.Get("dueamount") != "120.00" || q.Get("emailid") != "u1@example.test" {
		t.Errorf("unexpected gateway query %v", q)
	}

	txn := h.txn(res.OrderID)
	if txn.Status != models.TxnInitiated || txn.Amount != 120 || txn.GatewayPayload.CreditUsed != 480 {
		t.Errorf("stored transaction = %+v", txn)
	}

	// Credit stays until a payment settles in full.
	if credit, _ := h.repo.GetCredit(h.ctx, "u1"); credit != 480 {
		t.Errorf("credit should not be consumed at initiation, got %v", credit)
	}
}

func TestInitiateRejections(t *testing.T) {
	h := newHarness(t)
	h.seedProfile("u1")

	_, err := h.orders.Initiate(h.ctx, InitiateRequest{UserID: "u1", BookingType: "parking", BookingID: "x"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("unknown booking type: expected validation error, got %v", err)
	}

	_, err = h.orders.Initiate(h.ctx, InitiateRequest{UserID: "u1", BookingType: "lunch"})
	if !errors.As(err, &ve) {
		t.Errorf("missing booking id: expected validation error, got %v", err)
	}

	_, err = h.orders.Initiate(h.ctx, InitiateRequest{UserID: "u1", BookingType: "lunch", BookingID: "nope"})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("missing booking: expected not found, got %v", err)
	}

	h.insert(models.LunchTable, map[string]interface{}{
		"id": "lunch-paid", "user_id": "u1", "total_price": 200, "payment_status": "PAID",
	})
	_, err = h.orders.Initiate(h.ctx, InitiateRequest{UserID: "u1", BookingType: "lunch", BookingID: "lunch-paid"})
	if !errors.As(err, &ve) {
		t.Errorf("paid booking: expected validation error, got %v", err)
	}

	if rows := h.gw.Rows(models.PaymentTransactionsTable); len(rows) != 0 {
		t.Errorf("rejected orders must not write transactions, found %d", len(rows))
	}
}

func TestInitiateTeamCreatesInactiveTeam(t *testing.T) {
	h := newHarness(t)
	h.seedProfile("leader")
	h.seedEvent("ev-robo", "Robo Wars", 150, true, 4)

	res, err := h.orders.Initiate(h.ctx, InitiateRequest{
		UserID:      "leader",
		BookingType: string(models.BookingTeam),
		Team: &TeamOrder{
			EventID:   "ev-robo",
			TeamName:  "Bolt",
			MemberIDs: []string{"m1", "m2", "leader"},
		},
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if res.Amount != 450 {
		t.Errorf("team amount = %v, want 450", res.Amount)
	}

	teams := h.gw.Rows(models.TeamsTable)
	if len(teams) != 1 || teams[0]["is_active"] != false || teams[0]["id"] != res.BookingID {
		t.Fatalf("unexpected teams %v", teams)
	}
	if members := h.rows(models.TeamMembersTable, map[string]interface{}{"team_id": res.BookingID}); len(members) != 3 {
		t.Errorf("expected leader plus 2 members, got %d", len(members))
	}

	txn := h.txn(res.OrderID)
	if txn.GatewayPayload.Team == nil || txn.GatewayPayload.Team.UnpaidMembers != 3 {
		t.Errorf("team settlement not stored: %+v", txn.GatewayPayload.Team)
	}
}

func TestInitiateComboPreCreatesTeams(t *testing.T) {
	h := newHarness(t)
	h.seedProfile("u1")
	h.seedEvent("ev-quiz", "Quiz", 100, false, 1)
	h.seedEvent("ev-robo", "Robo Wars", 150, true, 3)
	h.insert(models.ComboPurchasesTable, map[string]interface{}{
		"id":                 "cp1",
		"user_id":            "u1",
		"combo_id":           "combo-gold",
		"combo_name":         "Gold",
		"selected_event_ids": []string{"ev-quiz", "ev-robo"},
		"total_amount":       299.0,
		"payment_status":     "PENDING",
	})

	req := InitiateRequest{
		UserID:         "u1",
		BookingType:    string(models.BookingCombo),
		BookingID:      "cp1",
		ComboTeamNames: map[string]string{"ev-robo": "Bolt"},
	}
	first, err := h.orders.Initiate(h.ctx, req)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if first.Amount != 299 {
		t.Errorf("combo amount = %v, want 299", first.Amount)
	}

	teams := h.gw.Rows(models.TeamsTable)
	if len(teams) != 1 {
		t.Fatalf("expected one team, got %v", teams)
	}
	team := teams[0]
	if team["is_active"] != false || team["team_name"] != "Bolt" || team["event_id"] != "ev-robo" || team["leader_id"] != "u1" {
		t.Errorf("unexpected team %v", team)
	}
	members := h.rows(models.TeamMembersTable, map[string]interface{}{"team_id": team["id"]})
	if len(members) != 1 || members[0]["user_id"] != "u1" || members[0]["role"] != models.RoleLeader {
		t.Errorf("expected only the leader row, got %v", members)
	}
	combo := h.txn(first.OrderID).GatewayPayload.Combo
	if combo == nil || combo.TeamIDs["ev-robo"] != team["id"] {
		t.Errorf("combo settlement = %+v", combo)
	}

	// Initiating again reuses the unpaid team.
	second, err := h.orders.Initiate(h.ctx, req)
	if err != nil {
		t.Fatalf("second Initiate: %v", err)
	}
	if n := len(h.gw.Rows(models.TeamsTable)); n != 1 {
		t.Errorf("re-initiation created %d teams, want 1", n)
	}
	if n := len(h.gw.Rows(models.TeamMembersTable)); n != 1 {
		t.Errorf("re-initiation added members, have %d", n)
	}
	if again := h.txn(second.OrderID).GatewayPayload.Combo; again == nil || again.TeamIDs["ev-robo"] != team["id"] {
		t.Errorf("second settlement = %+v", again)
	}
}

func TestInitiateMixedLeavesNothingOnRejection(t *testing.T) {
	h := newHarness(t)
	h.seedProfile("u1")
	h.seedEvent("ev-quiz", "Quiz", 100, false, 1)
	h.seedEvent("ev-robo", "Robo Wars", 150, true, 2)

	_, err := h.orders.Initiate(h.ctx, InitiateRequest{
		UserID:      "u1",
		BookingType: string(models.BookingMixed),
		Items: []MixedOrderItem{
			{Kind: "team", EventID: "ev-robo", TeamName: "Bolt", MemberIDs: []string{"m1"}},
			{Kind: "team", EventID: "ev-robo", TeamName: "Huge", MemberIDs: []string{"m1", "m2", "m3"}},
		},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("oversized team: expected validation error, got %v", err)
	}
	if teams := h.gw.Rows(models.TeamsTable); len(teams) != 0 {
		t.Errorf("no team may be created for a rejected cart, found %d", len(teams))
	}

	res, err := h.orders.Initiate(h.ctx, InitiateRequest{
		UserID:      "u1",
		BookingType: string(models.BookingMixed),
		Items: []MixedOrderItem{
			{Kind: "individual", EventID: "ev-quiz"},
			{Kind: "team", EventID: "ev-robo", TeamName: "Bolt", MemberIDs: []string{"m1"}},
		},
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !strings.HasPrefix(res.BookingID, "MIXED_") || res.Amount != 400 {
		t.Errorf("mixed result = %+v, want MIXED_ booking for 400", res)
	}
}

func TestListStale(t *testing.T) {
	h := newHarness(t)
	h.insert(models.PaymentTransactionsTable, map[string]interface{}{
		"order_id": "ORDER_old", "status": "INITIATED", "created_at": "2020-01-01T00:00:00Z",
	})
	h.insert(models.PaymentTransactionsTable, map[string]interface{}{
		"order_id": "ORDER_done", "status": "SUCCESS", "created_at": "2020-01-01T00:00:00Z",
	})

	stale, err := h.orders.ListStale(h.ctx, DefaultPollTimeout)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(stale) != 1 || stale[0].OrderID != "ORDER_old" {
		t.Errorf("unexpected stale list %+v", stale)
	}

	if _, err := h.orders.ListStale(h.ctx, 0); err == nil {
		t.Error("expected an error for a non-positive age")
	}
}
