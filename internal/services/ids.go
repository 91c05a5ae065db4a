package services

import (
	"fmt"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

// ist is used for the date part of order ids.
var ist = time.FixedZone("IST", 5*60*60+30*60)

// IDGenerator builds order, batch and synthetic booking ids. Millisecond stamps
// are strictly increasing per process, so two orders for the same booking never
// share an id.
type IDGenerator struct {
	short func() string
	now   func() time.Time

	mu     sync.Mutex
	lastMs int64
}

func NewIDGenerator() (*IDGenerator, error) {
	short, err := nanoid.Standard(12)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &IDGenerator{short: short, now: time.Now}, nil
}

func (g *IDGenerator) stamp() (time.Time, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ms := now.UnixMilli()
	if ms <= g.lastMs {
		ms = g.lastMs + 1
	}
	g.lastMs = ms
	return now, ms
}

// OrderID returns ORDER_<YYYYMMDD>_<epoch-ms>_<first 8 chars of booking id>.
func (g *IDGenerator) OrderID(bookingID string) string {
	now, ms := g.stamp()
	return fmt.Sprintf("ORDER_%s_%d_%s", now.In(ist).Format("20060102"), ms, prefix(bookingID, 8))
}

// RemainderOrderID returns ORDER_<epoch-ms>_REMAINING_<first 5 chars of booking id>.
func (g *IDGenerator) RemainderOrderID(bookingID string) string {
	_, ms := g.stamp()
	return fmt.Sprintf("ORDER_%d_REMAINING_%s", ms, prefix(bookingID, 5))
}

func (g *IDGenerator) MixedID() string {
	return "MIXED_" + g.short()
}

func (g *IDGenerator) BatchID() string {
	return "BATCH_" + g.short()
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
