package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError hides backend details from the client and logs them instead.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	logStoreError(r, err)
	writeError(w, http.StatusBadGateway, "store unavailable")
}

func logStoreError(r *http.Request, err error) {
	if err == nil {
		return
	}
	slog.Error("store request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}
