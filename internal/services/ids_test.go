package services

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestOrderIDFormat(t *testing.T) {
	g, err := NewIDGenerator()
	if err != nil {
		t.Fatalf("NewIDGenerator: %v", err)
	}
	// 20:00 UTC is already the next day in IST.
	g.now = func() time.Time { return time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC) }

	id := g.OrderID("3f2b9c1e-aaaa-bbbb-cccc-000000000000")
	if !regexp.MustCompile(`^ORDER_20260305_\d{13}_3f2b9c1e$`).MatchString(id) {
		t.Errorf("unexpected order id %q", id)
	}

	rem := g.RemainderOrderID("3f2b9c1e-aaaa")
	if !regexp.MustCompile(`^ORDER_\d{13}_REMAINING_3f2b9$`).MatchString(rem) {
		t.Errorf("unexpected remainder id %q", rem)
	}

	if short := g.OrderID("ab"); !strings.HasSuffix(short, "_ab") {
		t.Errorf("short booking id should be kept whole, got %q", short)
	}
}

func TestOrderIDsAreUniqueWithinAMillisecond(t *testing.T) {
	g, err := NewIDGenerator()
	if err != nil {
		t.Fatalf("NewIDGenerator: %v", err)
	}
	frozen := time.Now()
	g.now = func() time.Time { return frozen }

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.OrderID("booking-1")
		if seen[id] {
			t.Fatalf("duplicate order id %q", id)
		}
		seen[id] = true
	}
}

func TestSyntheticIDs(t *testing.T) {
	g, err := NewIDGenerator()
	if err != nil {
		t.Fatalf("NewIDGenerator: %v", err)
	}
	if id := g.MixedID(); !strings.HasPrefix(id, "MIXED_") || len(id) != len("MIXED_")+12 {
		t.Errorf("unexpected mixed id %q", id)
	}
	if a, b := g.BatchID(), g.BatchID(); a == b || !strings.HasPrefix(a, "BATCH_") {
		t.Errorf("unexpected batch ids %q %q", a, b)
	}
}
