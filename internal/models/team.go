package models

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

type Team struct {
	ID              string    `json:"id,omitempty"`
	TeamName        string    `json:"team_name"`
	EventID         string    `json:"event_id"`
	LeaderID        string    `json:"leader_id"`
	MaxMembers      int       `json:"max_members"`
	IsActive        bool      `json:"is_active"`
	TotalPaidAmount float64   `json:"total_paid_amount"`
	PaidMembers     int       `json:"paid_members"`
	AppliedOrderIDs []string  `json:"applied_order_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	RoleLeader = "leader"
	RoleMember = "member"
)

type TeamMember struct {
	ID       string    `json:"id,omitempty"`
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

type TeamRepo interface {
	CreateTeam(ctx context.Context, team *Team) (*Team, error)
	GetTeam(ctx context.Context, id string) (*Team, error)
	AddTeamMembers(ctx context.Context, members []TeamMember) error
	ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error)
	ActivateTeam(ctx context.Context, id string) error
	FindInactiveTeam(ctx context.Context, eventID, leaderID string) (*Team, error)
	ApplyTeamPayment(ctx context.Context, teamID, orderID string, amount float64, paidMembers int) (bool, error)
}

func (r *Repo) CreateTeam(ctx context.Context, team *Team) (*Team, error) {
	raw, err := r.gw.Insert(ctx, TeamsTable, team)
	if err != nil {
		return nil, fmt.Errorf("failed to create team %q: %w", team.TeamName, err)
	}
	return decodeFirst[Team](raw, "created team")
}

func (r *Repo) GetTeam(ctx context.Context, id string) (*Team, error) {
	raw, err := r.gw.Select(ctx, TeamsTable, "*", storage.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("failed to get team %s: %w", id, err)
	}
	return decodeFirst[Team](raw, "team "+id)
}

func (r *Repo) AddTeamMembers(ctx context.Context, members []TeamMember) error {
	if len(members) == 0 {
		return nil
	}
	if _, err := r.gw.Insert(ctx, TeamMembersTable, members); err != nil {
		return fmt.Errorf("failed to add members to team %s: %w", members[0].TeamID, err)
	}
	return nil
}

func (r *Repo) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	raw, err := r.gw.Select(ctx, TeamMembersTable, "*", storage.Eq("team_id", teamID))
	if err != nil {
		return nil, fmt.Errorf("failed to list members of team %s: %w", teamID, err)
	}
	return decodeRows[TeamMember](raw)
}

func (r *Repo) ActivateTeam(ctx context.Context, id string) error {
	_, count, err := r.gw.Update(ctx, TeamsTable, map[string]interface{}{"is_active": true}, storage.Eq("id", id))
	if err != nil {
		return fmt.Errorf("failed to activate team %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindInactiveTeam returns the unpaid team leaderID already created for eventID.
func (r *Repo) FindInactiveTeam(ctx context.Context, eventID, leaderID string) (*Team, error) {
	raw, err := r.gw.Select(ctx, TeamsTable, "*",
		storage.Eq("event_id", eventID),
		storage.Eq("leader_id", leaderID),
		storage.Eq("is_active", false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find open team of %s for event %s: %w", leaderID, eventID, err)
	}
	return decodeFirst[Team](raw, "open team for event "+eventID)
}

// ApplyTeamPayment adds amount to the team's running total once per order,
// raises paid_members to paidMembers (never lowers it) and activates the team.
// It runs as one SQL statement through the apply_team_payment function; when the
// function is missing it falls back to read-then-write, which can lose updates
// under concurrent settlements. The bool result reports whether the atomic path
// was used.
func (r *Repo) ApplyTeamPayment(ctx context.Context, teamID, orderID string, amount float64, paidMembers int) (bool, error) {
	params := map[string]interface{}{
		"p_team_id":      teamID,
		"p_order_id":     orderID,
		"p_amount":       amount,
		"p_paid_members": paidMembers,
	}
	raw, rpcErr := r.gw.RPC(ctx, storage.ApplyTeamPaymentRPC, params)
	if rpcErr == nil {
		var updated Team
		if err := json.Unmarshal(raw, &updated); err != nil {
			return true, fmt.Errorf("failed to decode team %s after payment: %v", teamID, err)
		}
		return true, nil
	}
	if storage.IsTransient(rpcErr) {
		return true, rpcErr
	}

	team, err := r.GetTeam(ctx, teamID)
	if err != nil {
		return false, err
	}
	values := map[string]interface{}{"is_active": true}
	if !slices.Contains(team.AppliedOrderIDs, orderID) {
		values["total_paid_amount"] = team.TotalPaidAmount + amount
		values["applied_order_ids"] = append(slices.Clone(team.AppliedOrderIDs), orderID)
	}
	if paidMembers > team.PaidMembers {
		values["paid_members"] = paidMembers
	}
	if _, _, err := r.gw.Update(ctx, TeamsTable, values, storage.Eq("id", teamID)); err != nil {
		return false, fmt.Errorf("failed to update totals of team %s: %w", teamID, err)
	}
	return false, nil
}
