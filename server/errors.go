package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/breakingdawnisback/Job-Importer/errors"
	"github.com/breakingdawnisback/Job-Importer/feed"
	"github.com/breakingdawnisback/Job-Importer/importer"
)

// Sentinel errors for common cases.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict indicates a resource conflict (e.g., duplicate key)
	ErrConflict = errors.New("resource conflict")

	// ErrServiceUnavailable indicates a required service is not available
	ErrServiceUnavailable = errors.New("service unavailable")
)

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return errors.Wrap(ErrInvalidRequest, errors.Newf(format, args...).Error())
}

// handleError translates domain errors into HTTP responses. Domain sentinels
// from the feed and importer packages map to their natural status codes;
// everything else is a 500 with the detail kept out of the response body.
func handleError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	switch {
	case errors.IsAny(err, ErrNotFound, feed.ErrNotFound, importer.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.IsAny(err, ErrConflict, feed.ErrDuplicateURL, importer.ErrFeedInactive, importer.ErrSessionTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Errorw("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
