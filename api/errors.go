package api

import (
	"errors"
	"net/http"

	"firstbit/storage-api/service"
)

// uploadErrStatus maps registry errors onto HTTP statuses. Anything the
// registry didn't classify is an internal error.
func uploadErrStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyFinished):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
