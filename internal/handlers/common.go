// Package handlers exposes the subject, document and tutor services over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/1282saa/paperone/internal/auth"
	appErrors "github.com/1282saa/paperone/pkg/errors"
	"github.com/1282saa/paperone/pkg/validation"
)

const maxJSONBody = 5 << 20

// decodeJSON reads a JSON body into dst and runs its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.NewValidation("request body is required")
		}
		return appErrors.NewValidation("invalid request body: " + err.Error())
	}
	return validation.Struct(dst)
}

// userID returns the caller set by the auth middleware.
func userID(r *http.Request) (string, error) {
	id := auth.UserIDFromContext(r.Context())
	if id == "" {
		return "", appErrors.NewUnauthorized("authentication required")
	}
	return id, nil
}
