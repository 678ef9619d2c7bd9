package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListCodes returns a device's access codes, newest first.
//
// Query parameters:
//   - status: "active" or "completed"; omitted returns both partitions.
func (s *Server) handleListCodes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.registry.Get(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	active, completed := s.ledger.Partition(id)

	switch r.URL.Query().Get("status") {
	case "":
		writeJSON(w, http.StatusOK, map[string]any{
			"active":    active,
			"completed": completed,
		})
	case "active":
		writeJSON(w, http.StatusOK, map[string]any{"codes": active, "count": len(active)})
	case "completed":
		writeJSON(w, http.StatusOK, map[string]any{"codes": completed, "count": len(completed)})
	default:
		writeBadRequest(w, "status must be active or completed")
	}
}

// issueCodeRequest is the request body for POST /devices/{id}/codes.
type issueCodeRequest struct {
	TTLHours int    `json:"ttl_hours"`
	Note     string `json:"note"`
}

// handleIssueCode creates a fresh access code for a device.
func (s *Server) handleIssueCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	code, err := s.ledger.Issue(r.Context(), chi.URLParam(r, "id"), req.TTLHours, req.Note, actorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, code)
}

// handleRedeemCode redeems an access code. Redeeming a used, expired or
// unknown code is not an error; the response reports redeemed=false and
// nothing changes.
func (s *Server) handleRedeemCode(w http.ResponseWriter, r *http.Request) {
	redeemed, err := s.ledger.Redeem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeInternalError(w, "failed to redeem code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"redeemed": redeemed})
}

// handleShareCode returns a ready-to-send message for a code.
func (s *Server) handleShareCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.ledger.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	deviceName := code.DeviceID
	if dev, err := s.registry.Get(r.Context(), code.DeviceID); err == nil {
		deviceName = dev.Name
	}

	text := fmt.Sprintf("BoxBuddy access code %s for %s. Expires %s",
		code.Code, deviceName, code.ExpiresAt.Format("Jan 2, 2006 15:04 MST"))

	writeJSON(w, http.StatusOK, map[string]any{
		"code_id": code.ID,
		"text":    text,
	})
}
