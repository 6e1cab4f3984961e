package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/nebula-core/internal/dispatch"
)

// SignalRequest is the body of POST /signals.
type SignalRequest struct {
	SignalType string         `json:"signal_type"`
	Data       map[string]any `json:"data"`
	RobotID    string         `json:"robot_id,omitempty"`
}

// handleSendSignal fans a signal out to every enabled robot, or to the one
// named by robot_id, and returns the delivery report. Individual delivery
// failures are part of the report, not an error.
func (s *Server) handleSendSignal(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	req.SignalType = strings.TrimSpace(req.SignalType)
	if req.SignalType == "" {
		writeValidationError(w, "signal_type is required")
		return
	}

	report, err := s.dispatcher.SendSignal(r.Context(), dispatch.NewSignal(req.SignalType, req.Data), req.RobotID)
	if err != nil {
		if errors.Is(err, dispatch.ErrTargetNotFound) {
			writeNotFound(w, "robot not found or disabled")
			return
		}
		writeInternalError(w, "failed to send signal")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
