package services

import (
	"strings"
	"testing"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
)

func TestVerifyAmount(t *testing.T) {
	tests := []struct {
		name      string
		received  *float64
		status    models.TxnStatus
		verdict   Verdict
		want      models.TxnStatus
		remaining float64
	}{
		{"exact", amount(500), models.TxnSuccess, VerdictSuccess, models.TxnSuccess, 0},
		{"within tolerance above", amount(500.05), models.TxnSuccess, VerdictSuccess, models.TxnSuccess, 0},
		{"tolerance edge", amount(500.1), models.TxnSuccess, VerdictSuccess, models.TxnSuccess, 0},
		{"within tolerance below", amount(499.95), "", VerdictSuccess, models.TxnSuccess, 0},
		{"partial", amount(480), models.TxnSuccess, VerdictPartial, models.TxnPending, 20},
		{"overpaid", amount(520), models.TxnSuccess, VerdictMismatch, models.TxnFailed, 0},
		{"no amount trusts status", nil, models.TxnSuccess, VerdictTrusted, models.TxnSuccess, 0},
		{"failure status skips amount check", amount(10), models.TxnPending, VerdictTrusted, models.TxnPending, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := VerifyAmount(500, tt.received, tt.status)
			if v.Verdict != tt.verdict {
				t.Errorf("verdict = %s, want %s", v.Verdict, tt.verdict)
			}
			if v.Status != tt.want {
				t.Errorf("status = %s, want %s", v.Status, tt.want)
			}
			if v.Remaining != tt.remaining {
				t.Errorf("remaining = %v, want %v", v.Remaining, tt.remaining)
			}
		})
	}
}

func TestVerifyAmountMessages(t *testing.T) {
	partial := VerifyAmount(500, amount(480), models.TxnSuccess)
	if partial.Message != "Partial Payment: remaining 20.00" {
		t.Errorf("unexpected partial message %q", partial.Message)
	}

	mismatch := VerifyAmount(500, amount(520), models.TxnSuccess)
	if !strings.HasPrefix(mismatch.Message, "Security Alert: Amount mismatch") {
		t.Errorf("unexpected mismatch message %q", mismatch.Message)
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]models.TxnStatus{
		"":          "",
		"success":   models.TxnSuccess,
		" SUCCESS ": models.TxnSuccess,
		"Paid":      models.TxnSuccess,
		"FAIL":      models.TxnPending,
		"failure":   models.TxnPending,
		"FAILED":    models.TxnPending,
		"aborted":   models.TxnPending,
	}
	for raw, want := range tests {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}
