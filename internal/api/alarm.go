package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/sentry-core/internal/event"
)

// toggleRequest is the request body for POST /devices/{key}/toggle.
// PIN may be omitted; the change key alone then authorizes.
type toggleRequest struct {
	PIN       string `json:"pin"`
	ChangeKey string `json:"change_key"`
}

// changePinRequest is the request body for POST /devices/{key}/pin.
type changePinRequest struct {
	OldPIN    string `json:"old_pin"`
	NewPIN    string `json:"new_pin"`
	ChangeKey string `json:"change_key"`
}

// checkPinRequest is the request body for POST /devices/{key}/pin/check.
type checkPinRequest struct {
	PIN string `json:"pin"`
}

// ingestRequest is the request body for POST /devices/{key}/events.
// Timestamp is optional RFC 3339; empty means now.
type ingestRequest struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp,omitempty"`
}

// handleToggleAlarm flips the device's armed state after credential
// authorization and returns the updated device.
func (s *Server) handleToggleAlarm(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFrom(r)
	updated, err := s.alarm.Toggle(r.Context(), d.Key, req.PIN, req.ChangeKey, claims.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleChangePin replaces the device PIN after dual-factor authorization.
func (s *Server) handleChangePin(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}

	var req changePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFrom(r)
	if err := s.alarm.ChangePin(r.Context(), d.Key, req.OldPIN, req.NewPIN, req.ChangeKey, claims.Username); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCheckPin verifies a PIN without changing any state. Both
// outcomes are 200; the result carries the verdict.
func (s *Server) handleCheckPin(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}

	var req checkPinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFrom(r)
	valid, err := s.alarm.CheckPin(r.Context(), d.Key, req.PIN, claims.Username)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleIngestEvent records a raw sensor event over HTTP and returns
// the recorded event plus anything the correlation rules derived.
// This is the same path MQTT reports take.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var ts time.Time
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "timestamp must be RFC 3339")
			return
		}
		ts = parsed
	}

	result, err := s.alarm.Ingest(r.Context(), d.Key, req.Category, ts)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleDeviceLogs returns the device's event log, filtered by query
// parameters: category (repeatable), from, to (RFC 3339), limit, offset.
func (s *Server) handleDeviceLogs(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}

	filter, ok := parseLogFilter(w, r)
	if !ok {
		return
	}

	events, err := s.alarm.QueryLogs(r.Context(), d.Key, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// parseLogFilter builds an event filter from query parameters. On
// invalid input the error response has already been written.
func parseLogFilter(w http.ResponseWriter, r *http.Request) (event.Filter, bool) {
	var filter event.Filter
	q := r.URL.Query()

	for _, c := range q["category"] {
		filter.Categories = append(filter.Categories, event.Category(c))
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "from must be RFC 3339")
			return filter, false
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "to must be RFC 3339")
			return filter, false
		}
		filter.To = t
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "limit must be a non-negative integer")
			return filter, false
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "offset must be a non-negative integer")
			return filter, false
		}
		filter.Offset = n
	}

	return filter, true
}
