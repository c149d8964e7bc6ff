package handlers

import (
	"encoding/json"
	"net/http"

	"native-thumbnail/internal/logging"
)

// respond writes v as a JSON body with the given status. Encoding errors are
// logged; the status line has already gone out by then.
func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}
