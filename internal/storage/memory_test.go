package storage

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemoryGatewayUpdateIsFilterQualified(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	if _, err := gw.Insert(ctx, "payment_transactions", map[string]interface{}{
		"order_id": "ORDER_1",
		"status":   "INITIATED",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, n, err := gw.Update(ctx, "payment_transactions",
		map[string]interface{}{"status": "SUCCESS"},
		Eq("order_id", "ORDER_1"), Eq("status", "INITIATED"))
	if err != nil || n != 1 {
		t.Fatalf("first transition: n=%d err=%v", n, err)
	}

	_, n, err = gw.Update(ctx, "payment_transactions",
		map[string]interface{}{"status": "FAILED"},
		Eq("order_id", "ORDER_1"), Eq("status", "INITIATED"))
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if n != 0 {
		t.Errorf("second transition must affect no rows, got %d", n)
	}

	rows := gw.Rows("payment_transactions")
	if rows[0]["status"] != "SUCCESS" {
		t.Errorf("expected SUCCESS to stick, got %v", rows[0]["status"])
	}
}

func TestMemoryGatewayUpsertMergesOnConflictColumns(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	for _, status := range []string{"PENDING", "PAID"} {
		if _, err := gw.Upsert(ctx, "event_registrations_config", map[string]interface{}{
			"user_id":        "u1",
			"event_id":       "e1",
			"payment_status": status,
		}, "user_id,event_id"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	rows := gw.Rows("event_registrations_config")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["payment_status"] != "PAID" {
		t.Errorf("expected merged status PAID, got %v", rows[0]["payment_status"])
	}
	if rows[0]["id"] == "" || rows[0]["id"] == nil {
		t.Error("expected an id to be assigned")
	}
}

func TestMemoryGatewayApplyTeamPayment(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	if _, err := gw.Insert(ctx, "teams", map[string]interface{}{
		"id":                "t1",
		"total_paid_amount": 0,
		"paid_members":      0,
		"is_active":         false,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	apply := func(orderID string, amount float64, members int) map[string]interface{} {
		t.Helper()
		raw, err := gw.RPC(ctx, ApplyTeamPaymentRPC, map[string]interface{}{
			"p_team_id":      "t1",
			"p_order_id":     orderID,
			"p_amount":       amount,
			"p_paid_members": members,
		})
		if err != nil {
			t.Fatalf("rpc: %v", err)
		}
		var team map[string]interface{}
		if err := json.Unmarshal(raw, &team); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return team
	}

	team := apply("ORDER_a", 450, 2)
	if team["total_paid_amount"].(float64) != 450 || team["paid_members"].(float64) != 2 || team["is_active"] != true {
		t.Errorf("unexpected team after first payment: %v", team)
	}

	// The same order again only raises the member count.
	team = apply("ORDER_a", 450, 3)
	if team["total_paid_amount"].(float64) != 450 || team["paid_members"].(float64) != 3 {
		t.Errorf("order applied twice: %v", team)
	}

	team = apply("ORDER_b", 150, 1)
	if team["total_paid_amount"].(float64) != 600 || team["paid_members"].(float64) != 3 {
		t.Errorf("second order: %v", team)
	}

	if _, err := gw.RPC(ctx, "unknown_fn", map[string]interface{}{"x": 1}); err == nil {
		t.Error("expected an error for an unknown function")
	}
}

func TestMemoryGatewayCountAndLt(t *testing.T) {
	ctx := context.Background()
	gw := NewMemoryGateway()

	for _, ts := range []string{"2026-01-01T10:00:00Z", "2026-01-01T12:00:00Z"} {
		if _, err := gw.Insert(ctx, "payment_transactions", map[string]interface{}{
			"status":     "INITIATED",
			"created_at": ts,
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	n, err := gw.Count(ctx, "payment_transactions", Eq("status", "INITIATED"), Lt("created_at", "2026-01-01T11:00:00Z"))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 stale row, got %d", n)
	}
}
