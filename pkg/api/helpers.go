// Package api provides standardized helper functions for HTTP API responses.
package api

import (
	"encoding/json"
	"net/http"
)

// Success sends a JSON response with the given status. A nil body writes
// only the status line.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// NoContent writes a 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Message sends a {"message": ...} body, used by placeholder endpoints.
func Message(w http.ResponseWriter, statusCode int, message string) {
	Success(w, statusCode, map[string]string{"message": message})
}
