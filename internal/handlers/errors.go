package handlers

import (
	"errors"
	"net/http"

	"github.com/Mithunp123/Dakshaa-sub002/internal/helpers"
	"github.com/Mithunp123/Dakshaa-sub002/internal/services"
	"github.com/gin-gonic/gin"
)

// writeError maps service errors to status codes. Anything unclassified is a
// 500 and goes to the ErrorHandler middleware for logging.
func writeError(c *gin.Context, err error) {
	var (
		ve *services.ValidationError
		nf *services.NotFoundError
		ce *services.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, helpers.ErrorResponse(ve.Error()))
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, helpers.ErrorResponse(nf.Error()))
	case errors.As(err, &ce):
		c.JSON(ce.StatusCode(), helpers.ErrorResponse(ce.Error()))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("Internal server error"))
	}
}

// authorized checks that an authenticated caller acts on their own account.
// Service-role tokens may act for anyone. Requests without claims pass; the
// Auth middleware decides whether a token is required at all.
func authorized(c *gin.Context, userID string) bool {
	raw, exists := c.Get("user")
	if !exists {
		return true
	}
	claims, ok := raw.(*helpers.UserClaims)
	if !ok {
		c.JSON(http.StatusInternalServerError, helpers.ErrorResponse("invalid user claims"))
		return false
	}
	if claims.IsServiceRole() || claims.IsOwner(userID) {
		return true
	}
	c.JSON(http.StatusForbidden, helpers.ErrorResponse("token does not belong to user_id"))
	return false
}
