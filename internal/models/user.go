package models

import (
	"context"
	"fmt"

	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// Profile is the read-only registration profile of a user.
type Profile struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
	CollegeName  string `json:"college_name"`
	Gender       string `json:"gender,omitempty"`
	RollNumber   string `json:"roll_number,omitempty"`
}

type ProfileRepo interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
}

func (r *Repo) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	raw, err := r.gw.Select(ctx, ProfileTable, "*", storage.Eq("id", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return decodeFirst[Profile](raw, "profile "+userID)
}
