package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrEmailUnconfirmed blocks login until the confirmation link is used.
	ErrEmailUnconfirmed = errors.New("email not confirmed")
	// ErrForbidden indicates the caller may not touch the row.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation wraps user input problems.
	ErrValidation = errors.New("validation failed")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Invalid builds a validation error carrying a user-facing message.
func Invalid(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

// UserSafeMessage turns an error into text that can be shown on a form.
// Only errors from the known sentinel set leak their wording; everything
// else collapses into a generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		msg := err.Error()
		marker := ErrValidation.Error() + ": "
		if idx := strings.Index(msg, marker); idx >= 0 {
			return msg[idx+len(marker):]
		}
		return "Please check the highlighted fields."
	case errors.Is(err, ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, ErrEmailTaken):
		return "This email is already registered."
	case errors.Is(err, ErrEmailUnconfirmed):
		return "Please confirm your email before logging in."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that."
	default:
		return "Something went wrong. Please try again."
	}
}
