package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Mithunp123/Dakshaa-sub002/internal/models"
	"github.com/Mithunp123/Dakshaa-sub002/internal/storage"
)

// ContactResolver reads a user's profile and fills missing email or phone from
// the auth directory.
type ContactResolver struct {
	profiles  models.ProfileRepo
	directory storage.Directory
	logger    *slog.Logger
}

func NewContactResolver(profiles models.ProfileRepo, directory storage.Directory, logger *slog.Logger) *ContactResolver {
	return &ContactResolver{profiles: profiles, directory: directory, logger: logger}
}

func (c *ContactResolver) Resolve(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := c.profiles.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if profile == nil {
		profile = &models.Profile{ID: userID}
	}
	if profile.Email != "" && profile.MobileNumber != "" {
		return profile, nil
	}

	if c.directory == nil {
		if err != nil {
			return nil, notFound("user", userID)
		}
		return profile, nil
	}

	user, lookupErr := c.directory.LookupUser(ctx, userID)
	if lookupErr != nil {
		if err != nil {
			return nil, notFound("user", userID)
		}
		c.logger.Warn("Auth lookup failed, using profile as is", "user_id", userID, "error", lookupErr)
		return profile, nil
	}

	if profile.Email == "" {
		profile.Email = user.Email
	}
	if profile.MobileNumber == "" {
		profile.MobileNumber = user.Phone
	}
	if profile.FullName == "" {
		profile.FullName = user.Name
	}
	return profile, nil
}
