package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/retailhive/retailhive-backend/pkg/errors"
)

// PathUUID parses a chi URL param. A malformed id reads as not found.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, name)))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "Not found.")
	}
	return id, nil
}

// OptionalQueryUUID returns nil when key is absent or blank.
func OptionalQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, invalidInputMessage).
			WithDetails(map[string][]string{key: {"Must be a valid UUID."}})
	}
	return &id, nil
}
