package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ufobeep/beepnet/internal/beeperr"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON shape returned for every non-2xx response.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps a beeperr.Kind to the HTTP status §7 assigns it and writes
// the error body. Errors that aren't beeperr-tagged are treated as internal.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := ""

	var be *beeperr.Error
	if beeperr.Is(err, beeperr.KindInput) {
		status, kind = http.StatusBadRequest, string(beeperr.KindInput)
	} else if beeperr.Is(err, beeperr.KindNotFound) {
		status, kind = http.StatusNotFound, string(beeperr.KindNotFound)
	} else if beeperr.Is(err, beeperr.KindDuplicateWitness) {
		status, kind = http.StatusConflict, string(beeperr.KindDuplicateWitness)
	} else if beeperr.Is(err, beeperr.KindRateLimited) {
		status, kind = http.StatusTooManyRequests, string(beeperr.KindRateLimited)
	} else if beeperr.Is(err, beeperr.KindWindowClosed) {
		status, kind = http.StatusGone, string(beeperr.KindWindowClosed)
	} else if beeperr.Is(err, beeperr.KindOutOfRangeWitness) {
		status, kind = http.StatusBadRequest, string(beeperr.KindOutOfRangeWitness)
	} else if beeperr.Is(err, beeperr.KindConflict) {
		status, kind = http.StatusConflict, string(beeperr.KindConflict)
	} else if beeperr.Is(err, beeperr.KindTimeout) {
		status, kind = http.StatusGatewayTimeout, string(beeperr.KindTimeout)
	} else if beeperr.Is(err, beeperr.KindTransientBackend) || beeperr.Is(err, beeperr.KindUpstream) || beeperr.Is(err, beeperr.KindDispatchUnavailable) {
		status, kind = http.StatusServiceUnavailable, string(beeperr.KindTransientBackend)
	}

	msg := err.Error()
	if errors.As(err, &be) {
		msg = be.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
