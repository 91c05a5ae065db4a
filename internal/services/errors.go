package services

import (
	"fmt"
	"net/http"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError covers duplicate bookings (400) and fully paid teams (409).
type ConflictError struct {
	Message string
	Code    int
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) StatusCode() int {
	if e.Code == 0 {
		return http.StatusConflict
	}
	return e.Code
}

// SecurityError is raised when the gateway reports more than the order asked
// for. The order is failed and never retried.
type SecurityError struct {
	OrderID  string
	Expected float64
	Received float64
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security mismatch on %s: received %.2f, expected %.2f", e.OrderID, e.Received, e.Expected)
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func notFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}
