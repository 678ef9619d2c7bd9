package api

import (
	"net/http"
	"strconv"

	"github.com/boxbuddy/boxbuddy-core/internal/audit"
)

// handleListAudit returns audit entries, newest first.
//
// Query parameters:
//   - kind: filter by entry kind (system, action, cooling, code, delivery, info)
//   - device_id: filter by device
//   - limit: page size (default 50, max 200)
//   - offset: page offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		DeviceID: q.Get("device_id"),
	}

	if kindStr := q.Get("kind"); kindStr != "" {
		kind := audit.Kind(kindStr)
		if !kind.Valid() {
			writeBadRequest(w, "unknown audit kind: "+kindStr)
			return
		}
		filter.Kind = kind
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
