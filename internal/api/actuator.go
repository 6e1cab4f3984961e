package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/nebula-core/internal/actuator"
)

// handleActuatorStatus returns the primary actuator connection status.
func (s *Server) handleActuatorStatus(w http.ResponseWriter, _ *http.Request) {
	if s.actuator == nil {
		writeUnavailable(w, "actuator not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.actuator.Status())
}

// handleListGestures returns the gesture catalogue.
func (s *Server) handleListGestures(w http.ResponseWriter, _ *http.Request) {
	gestures := actuator.Gestures()
	writeJSON(w, http.StatusOK, map[string]any{"gestures": gestures, "count": len(gestures)})
}

// handleTriggerGesture asks the actuator to perform a catalogue gesture.
func (s *Server) handleTriggerGesture(w http.ResponseWriter, r *http.Request) {
	if s.actuator == nil {
		writeUnavailable(w, "actuator not configured")
		return
	}

	g, err := s.actuator.SendGesture(chi.URLParam(r, "gesture"))
	if err != nil {
		s.writeActuatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "gesture": g})
}

// handleCustomSignal forwards an arbitrary command object as a "custom"
// signal, e.g. {"command": "point"}.
func (s *Server) handleCustomSignal(w http.ResponseWriter, r *http.Request) {
	if s.actuator == nil {
		writeUnavailable(w, "actuator not configured")
		return
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(data) == 0 {
		writeValidationError(w, "custom signal data must not be empty")
		return
	}

	if err := s.actuator.Send(actuator.CustomSignal, data); err != nil {
		s.writeActuatorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "signal_type": actuator.CustomSignal})
}

func (s *Server) writeActuatorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actuator.ErrUnknownGesture):
		writeNotFound(w, err.Error())
	case errors.Is(err, actuator.ErrNotConnected), errors.Is(err, actuator.ErrClosed):
		writeUnavailable(w, "actuator not connected")
	default:
		s.logger.Warn("actuator send failed", "error", err)
		writeUnavailable(w, "actuator send failed")
	}
}
