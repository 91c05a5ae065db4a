package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplyTeamPaymentRPC adds one order's payment to a team's totals in one
// statement, skipping orders it has already applied. The SQL version lives in
// migrations/001_payment_engine.sql.
const ApplyTeamPaymentRPC = "apply_team_payment"

type row = map[string]interface{}

// MemoryGateway is an in-process Gateway used for local runs and tests. Each call
// holds the lock for its whole duration, which gives the same per-statement
// atomicity PostgREST provides.
type MemoryGateway struct {
	mu     sync.Mutex
	tables map[string][]row
	users  map[string]*AuthUser
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tables: make(map[string][]row),
		users:  make(map[string]*AuthUser),
	}
}

// SeedUser registers an auth user for LookupUser.
func (m *MemoryGateway) SeedUser(u AuthUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

// Rows returns a copy of every row of a table.
func (m *MemoryGateway) Rows(table string) []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, copyRow(r))
	}
	return out
}

func (m *MemoryGateway) Select(ctx context.Context, table, columns string, filters ...Filter) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]row, 0)
	for _, r := range m.tables[table] {
		if matches(r, filters) {
			matched = append(matched, project(r, columns))
		}
	}
	return json.Marshal(matched)
}

func (m *MemoryGateway) Count(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.tables[table] {
		if matches(r, filters) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryGateway) Insert(ctx context.Context, table string, values interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := toRows(values)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		ensureID(r)
		m.tables[table] = append(m.tables[table], r)
	}
	return json.Marshal(rows)
}

func (m *MemoryGateway) Upsert(ctx context.Context, table string, values interface{}, onConflict string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := toRows(values)
	if err != nil {
		return nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	keys := strings.Split(onConflict, ",")

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]row, 0, len(rows))
	for _, r := range rows {
		filters := make([]Filter, 0, len(keys))
		for _, k := range keys {
			k = strings.TrimSpace(k)
			filters = append(filters, Eq(k, r[k]))
		}

		merged := false
		for _, existing := range m.tables[table] {
			if matches(existing, filters) {
				for k, v := range r {
					existing[k] = v
				}
				out = append(out, copyRow(existing))
				merged = true
				break
			}
		}
		if !merged {
			ensureID(r)
			m.tables[table] = append(m.tables[table], r)
			out = append(out, copyRow(r))
		}
	}
	return json.Marshal(out)
}

func (m *MemoryGateway) Update(ctx context.Context, table string, values interface{}, filters ...Filter) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	rows, err := toRows(values)
	if err != nil || len(rows) != 1 {
		return nil, 0, fmt.Errorf("update %s: expected a single object of values", table)
	}
	patch := rows[0]

	m.mu.Lock()
	defer m.mu.Unlock()

	updated := make([]row, 0)
	for _, r := range m.tables[table] {
		if !matches(r, filters) {
			continue
		}
		for k, v := range patch {
			r[k] = v
		}
		updated = append(updated, copyRow(r))
	}
	raw, err := json.Marshal(updated)
	return raw, int64(len(updated)), err
}

func (m *MemoryGateway) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	var n int64
	for _, r := range m.tables[table] {
		if matches(r, filters) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return n, nil
}

func (m *MemoryGateway) RPC(ctx context.Context, fn string, params interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := toRows(params)
	if err != nil || len(rows) != 1 {
		return nil, fmt.Errorf("rpc %s: invalid params", fn)
	}
	p := rows[0]

	switch fn {
	case ApplyTeamPaymentRPC:
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, r := range m.tables["teams"] {
			if stringify(r["id"]) != stringify(p["p_team_id"]) {
				continue
			}
			orderID := stringify(p["p_order_id"])
			applied, _ := r["applied_order_ids"].([]interface{})
			seen := false
			for _, id := range applied {
				if stringify(id) == orderID {
					seen = true
					break
				}
			}
			if !seen {
				next := make([]interface{}, 0, len(applied)+1)
				next = append(next, applied...)
				r["applied_order_ids"] = append(next, orderID)
				r["total_paid_amount"] = toFloat(r["total_paid_amount"]) + toFloat(p["p_amount"])
			}
			if members := toFloat(p["p_paid_members"]); members > toFloat(r["paid_members"]) {
				r["paid_members"] = members
			}
			r["is_active"] = true
			return json.Marshal(r)
		}
		return nil, fmt.Errorf("rpc %s: team %v not found", fn, p["p_team_id"])
	default:
		return nil, fmt.Errorf("rpc %s: function not found", fn)
	}
}

func (m *MemoryGateway) LookupUser(ctx context.Context, userID string) (*AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("auth user %s not found", userID)
	}
	cp := *u
	return &cp, nil
}

func toRows(values interface{}) ([]row, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var rows []row
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var r row
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return []row{r}, nil
}

func ensureID(r row) {
	if id, ok := r["id"]; !ok || id == nil || id == "" {
		r["id"] = uuid.NewString()
	}
}

func matches(r row, filters []Filter) bool {
	for _, f := range filters {
		v := stringify(r[f.Column])
		switch f.Op {
		case OpEq:
			if v != f.Value {
				return false
			}
		case OpNeq:
			if v == f.Value {
				return false
			}
		case OpIn:
			found := false
			for _, candidate := range f.Values {
				if v == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpLt:
			if !less(v, f.Value) {
				return false
			}
		}
	}
	return true
}

func less(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Before(tb)
	}
	return a < b
}

func project(r row, columns string) row {
	if columns == "" || columns == "*" {
		return copyRow(r)
	}
	out := make(row)
	for _, c := range strings.Split(columns, ",") {
		c = strings.TrimSpace(c)
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func copyRow(r row) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}
