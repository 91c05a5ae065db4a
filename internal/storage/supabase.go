package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
)

// SupabaseGateway talks to the PostgREST API of a Supabase project. It should be
// built with the service role key: the engine writes on behalf of many users.
type SupabaseGateway struct {
	client *supabase.Client
	url    string
	key    string
}

func NewSupabaseGateway(client *supabase.Client, url, key string) *SupabaseGateway {
	return &SupabaseGateway{
		client: client,
		url:    strings.TrimRight(url, "/"),
		key:    key,
	}
}

func (s *SupabaseGateway) Select(ctx context.Context, table, columns string, filters ...Filter) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if columns == "" {
		columns = "*"
	}

	raw, _, err := applyFilters(s.client.From(table).Select(columns, "", false), filters).Execute()
	if err != nil {
		return nil, classify("select "+table, err)
	}
	return raw, nil
}

func (s *SupabaseGateway) Count(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	_, count, err := applyFilters(s.client.From(table).Select("*", "exact", true), filters).Execute()
	if err != nil {
		return 0, classify("count "+table, err)
	}
	return count, nil
}

func (s *SupabaseGateway) Insert(ctx context.Context, table string, values interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, _, err := s.client.From(table).Insert(values, false, "", "", "exact").Execute()
	if err != nil {
		return nil, classify("insert "+table, err)
	}
	return raw, nil
}

func (s *SupabaseGateway) Upsert(ctx context.Context, table string, values interface{}, onConflict string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, _, err := s.client.From(table).Insert(values, true, onConflict, "", "exact").Execute()
	if err != nil {
		return nil, classify("upsert "+table, err)
	}
	return raw, nil
}

func (s *SupabaseGateway) Update(ctx context.Context, table string, values interface{}, filters ...Filter) ([]byte, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	raw, count, err := applyFilters(s.client.From(table).Update(values, "", "exact"), filters).Execute()
	if err != nil {
		return nil, 0, classify("update "+table, err)
	}
	return raw, count, nil
}

func (s *SupabaseGateway) Delete(ctx context.Context, table string, filters ...Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	_, count, err := applyFilters(s.client.From(table).Delete("", "exact"), filters).Execute()
	if err != nil {
		return 0, classify("delete "+table, err)
	}
	return count, nil
}

// RPC uses its own postgrest client per call: the client reports failures through
// its shared ClientError field.
func (s *SupabaseGateway) RPC(ctx context.Context, fn string, params interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rest := postgrest.NewClient(s.url+"/rest/v1", "public", map[string]string{
		"apikey":        s.key,
		"Authorization": "Bearer " + s.key,
	})
	res := rest.Rpc(fn, "", params)
	if rest.ClientError != nil {
		return nil, classify("rpc "+fn, rest.ClientError)
	}
	return []byte(res), nil
}

func (s *SupabaseGateway) LookupUser(ctx context.Context, userID string) (*AuthUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %v", userID, err)
	}

	resp, err := s.client.Auth.WithToken(s.key).AdminGetUser(types.AdminGetUserRequest{UserID: id})
	if err != nil {
		return nil, classify("admin get user", err)
	}

	user := &AuthUser{
		ID:    resp.ID.String(),
		Email: resp.Email,
		Phone: resp.Phone,
	}
	if name, ok := resp.UserMetadata["full_name"].(string); ok {
		user.Name = name
	}
	return user, nil
}

func applyFilters(fb *postgrest.FilterBuilder, filters []Filter) *postgrest.FilterBuilder {
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			fb = fb.Eq(f.Column, f.Value)
		case OpNeq:
			fb = fb.Neq(f.Column, f.Value)
		case OpIn:
			fb = fb.In(f.Column, f.Values)
		case OpLt:
			fb = fb.Lt(f.Column, f.Value)
		}
	}
	return fb
}

// classify wraps transport level failures in TransientError. PostgREST answers
// (constraint violations, bad filters) are returned as permanent errors.
func classify(op string, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF):
		return &TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
