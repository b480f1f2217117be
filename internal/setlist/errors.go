package setlist

import (
	"errors"
	"net/http"
)

// apiError carries the HTTP status the handler layer should answer with.
// Conflict errors are safe for the caller to retry; everything else is not.
type apiError struct {
	status    int
	msg       string
	retryable bool
}

func (e *apiError) Error() string { return e.msg }

var (
	ErrNotFound         = &apiError{status: http.StatusNotFound, msg: "not found"}
	ErrNotAuthenticated = &apiError{status: http.StatusUnauthorized, msg: "missing user context"}
	ErrForbidden        = &apiError{status: http.StatusForbidden, msg: "forbidden"}
	ErrLocked           = &apiError{status: http.StatusForbidden, msg: "setlist is locked"}
	ErrInvalidOrder     = &apiError{status: http.StatusUnprocessableEntity, msg: "positions must be a permutation of the current entries"}
	ErrConflict         = &apiError{status: http.StatusConflict, msg: "concurrent update, retry", retryable: true}
	ErrImportNoMatch    = &apiError{status: http.StatusNotFound, msg: "no matching setlist found at import source"}
	ErrImportFailed     = &apiError{status: http.StatusBadGateway, msg: "import source error"}
)

// Retryable reports whether the caller may retry the operation that
// produced err. The core never retries on its own.
func Retryable(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.retryable
}

func statusFor(err error) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.msg
	}
	return http.StatusInternalServerError, "internal error"
}
