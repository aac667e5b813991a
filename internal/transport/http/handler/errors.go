package handler

import (
	"errors"
	"net/http"

	"github.com/calling-tree-api/internal/domain"
)

// httpError maps domain sentinel errors to HTTP status codes. Anything
// unrecognized is a 500 with a generic body so infrastructure details never
// reach the client.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotAtCurrentLevel):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrTreeNotActive),
		errors.Is(err, domain.ErrStaleLevel),
		errors.Is(err, domain.ErrNotificationTerminal):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
