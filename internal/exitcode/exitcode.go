// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"
	"net/http"

	"todo/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, invalid input, task not found).
	UserError = 1

	// AuthError indicates the command needs a session that is missing or expired.
	AuthError = 2

	// BackendError indicates a server or network failure.
	BackendError = 3
)

// FromError maps an operation error to an exit code.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	if errors.Is(err, service.ErrNotAuthenticated) {
		return AuthError
	}
	var e *service.Error
	if !errors.As(err, &e) {
		return UserError
	}
	switch e.Kind {
	case service.KindValidation:
		return UserError
	case service.KindSessionExpired, service.KindAuthRejected:
		return AuthError
	case service.KindRequestFailed:
		switch {
		case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
			return AuthError
		case e.Status >= 400 && e.Status < 500:
			return UserError
		}
	}
	return BackendError
}
