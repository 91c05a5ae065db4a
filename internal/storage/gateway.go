package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
	OpLt  Op = "lt"
)

// Filter is a single column predicate. Values are compared in their string form,
// the same way PostgREST receives them on the query string.
type Filter struct {
	Column string
	Op     Op
	Value  string
	Values []string
}

func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpEq, Value: stringify(value)}
}

func Neq(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpNeq, Value: stringify(value)}
}

func In(column string, values []string) Filter {
	return Filter{Column: column, Op: OpIn, Values: values}
}

func Lt(column string, value interface{}) Filter {
	return Filter{Column: column, Op: OpLt, Value: stringify(value)}
}

// Gateway is the row-oriented store the engine talks to. Every write is a single
// filter-qualified statement; no multi-row transactions are available.
type Gateway interface {
	// Select returns a JSON array of rows.
	Select(ctx context.Context, table, columns string, filters ...Filter) ([]byte, error)
	// Count runs a head-only select and returns the exact row count.
	Count(ctx context.Context, table string, filters ...Filter) (int64, error)
	Insert(ctx context.Context, table string, values interface{}) ([]byte, error)
	// Upsert inserts or merges on the comma separated onConflict columns.
	Upsert(ctx context.Context, table string, values interface{}, onConflict string) ([]byte, error)
	// Update returns the updated rows and how many were affected.
	Update(ctx context.Context, table string, values interface{}, filters ...Filter) ([]byte, int64, error)
	Delete(ctx context.Context, table string, filters ...Filter) (int64, error)
	RPC(ctx context.Context, fn string, params interface{}) ([]byte, error)
}

// AuthUser is the subset of the auth admin record the engine reads.
type AuthUser struct {
	ID    string
	Email string
	Phone string
	Name  string
}

// Directory exposes the auth admin helpers of the store.
type Directory interface {
	LookupUser(ctx context.Context, userID string) (*AuthUser, error)
}

var ErrTransient = errors.New("transient storage failure")

// TransientError marks a failure that is worth retrying (connection resets,
// transport errors). It is attached at the gateway boundary so callers never
// inspect error strings.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
