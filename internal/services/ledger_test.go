package services

import (
	"testing"
)

func TestApplyCredit(t *testing.T) {
	tests := []struct {
		name      string
		base      float64
		credit    float64
		wantFinal float64
		wantUsed  float64
	}{
		{"no credit", 600, 0, 600, 0},
		{"partial credit", 600, 480, 120, 480},
		{"credit covers order", 300, 480, 1, 299},
		{"credit equals order", 500, 500, 1, 499},
		{"negative credit ignored", 200, -50, 200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, used := ApplyCredit(tt.base, tt.credit)
			if final != tt.wantFinal || used != tt.wantUsed {
				t.Errorf("ApplyCredit(%v, %v) = (%v, %v), want (%v, %v)", tt.base, tt.credit, final, used, tt.wantFinal, tt.wantUsed)
			}
		})
	}
}

func TestLedgerAccumulatesAndClears(t *testing.T) {
	h := newHarness(t)

	if _, err := h.ledger.RecordPartial(h.ctx, "u1", "ORDER_a", 300); err != nil {
		t.Fatalf("first partial: %v", err)
	}
	total, err := h.ledger.RecordPartial(h.ctx, "u1", "ORDER_b", 180)
	if err != nil {
		t.Fatalf("second partial: %v", err)
	}
	if total != 480 {
		t.Fatalf("credit = %v, want 480", total)
	}
	if total, _ := h.ledger.RecordPartial(h.ctx, "u1", "ORDER_b", 180); total != 480 {
		t.Fatalf("same order counted twice, credit = %v", total)
	}
	if rows := h.gw.Rows("insufficient_amount_credits"); len(rows) != 1 {
		t.Fatalf("expected a single credit row, got %d", len(rows))
	}

	final, used, err := h.ledger.Apply(h.ctx, "u1", 600)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if final != 120 || used != 480 {
		t.Errorf("Apply = (%v, %v), want (120, 480)", final, used)
	}

	if err := h.ledger.Clear(h.ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	final, _, err = h.ledger.Apply(h.ctx, "u1", 600)
	if err != nil {
		t.Fatalf("Apply after clear: %v", err)
	}
	if final != 600 {
		t.Errorf("expected full price after clear, got %v", final)
	}
}
