package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmarlow/keepsync/storage"
)

// errTokenMismatch is the authorization failure for a presented sync token
// that does not match the record's owner credential.
var errTokenMismatch = errors.New("invalid sync password")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errTokenMismatch):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
