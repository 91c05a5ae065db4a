package helpers

// UserClaims is what the auth middleware stores under "user".
type UserClaims struct {
	*CustomClaims
	UserID string `json:"id"`
}

func NewUserClaims(c *CustomClaims) *UserClaims {
	return &UserClaims{CustomClaims: c, UserID: c.Subject}
}

func (uc *UserClaims) IsOwner(userID string) bool {
	return uc.UserID == userID
}

func (uc *UserClaims) IsServiceRole() bool {
	return uc.Role == "service_role"
}
