package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/sentry-core/internal/auth"
	"github.com/nerrad567/sentry-core/internal/device"
)

// claimRequest is the request body for POST /devices/claim.
type claimRequest struct {
	Key string `json:"key"`
}

// handleListDevices returns the caller's claimed devices. Admins see
// every device, claimed or not.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var (
		devices []device.Device
		err     error
	)
	if claims.Role == auth.RoleAdmin {
		devices, err = s.devices.List(r.Context())
	} else {
		devices, err = s.devices.ListByOwner(r.Context(), claims.Subject)
	}
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleClaimDevice assigns a provisioned device to the caller's account.
func (s *Server) handleClaimDevice(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "key is required")
		return
	}

	d, err := s.devices.Claim(r.Context(), req.Key, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info("device claimed", "device_id", d.ID, "user_id", claims.Subject)
	writeJSON(w, http.StatusOK, d)
}

// handleGetDevice returns one device by key.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.authorizeDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// authorizeDevice resolves the {key} path parameter and enforces
// ownership: the caller must own the device or be an admin. On failure
// the error response has already been written and ok is false.
//
// Unknown keys and devices owned by someone else both yield 404 so the
// device key space cannot be probed.
func (s *Server) authorizeDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	claims := claimsFrom(r)
	key := chi.URLParam(r, "key")

	d, err := s.devices.GetByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("device lookup failed", "error", err)
		writeInternalError(w, "failed to load device")
		return nil, false
	}

	if claims.Role != auth.RoleAdmin {
		if d.OwnerID == nil || *d.OwnerID != claims.Subject {
			writeNotFound(w, "device not found")
			return nil, false
		}
	}

	return d, true
}
