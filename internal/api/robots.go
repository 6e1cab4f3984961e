package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/nebula-core/internal/dispatch"
	"github.com/nerrad567/nebula-core/internal/robot"
)

// handleListRobots returns all robots with credentials redacted.
func (s *Server) handleListRobots(w http.ResponseWriter, _ *http.Request) {
	robots := s.registry.List()
	out := make([]*robot.Config, 0, len(robots))
	for i := range robots {
		out = append(out, robots[i].Redacted())
	}
	writeJSON(w, http.StatusOK, map[string]any{"robots": out, "count": len(out)})
}

// handleGetRobot returns a single robot by ID.
func (s *Server) handleGetRobot(w http.ResponseWriter, r *http.Request) {
	rb, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "robot not found")
		return
	}
	writeJSON(w, http.StatusOK, rb.Redacted())
}

// handleAddRobot adds a robot, or replaces the one with the same ID.
// An omitted ID is generated.
func (s *Server) handleAddRobot(w http.ResponseWriter, r *http.Request) {
	var cfg robot.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	added, err := s.registry.Add(r.Context(), &cfg)
	if err != nil {
		if errors.Is(err, robot.ErrInvalidRobot) {
			writeValidationError(w, err.Error())
			return
		}
		s.logger.Error("failed to add robot", "error", err)
		writeInternalError(w, "failed to add robot")
		return
	}
	writeJSON(w, http.StatusCreated, added.Redacted())
}

// handleRemoveRobot deletes a robot and releases its connections.
func (s *Server) handleRemoveRobot(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, robot.ErrRobotNotFound) {
			writeNotFound(w, "robot not found")
			return
		}
		s.logger.Error("failed to remove robot", "error", err)
		writeInternalError(w, "failed to remove robot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetRobotEnabled toggles fan-out participation: {"enabled": bool}.
func (s *Server) handleSetRobotEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeValidationError(w, "enabled is required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.SetEnabled(r.Context(), id, *req.Enabled); err != nil {
		if errors.Is(err, robot.ErrRobotNotFound) {
			writeNotFound(w, "robot not found")
			return
		}
		s.logger.Error("failed to update robot", "id", id, "error", err)
		writeInternalError(w, "failed to update robot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": *req.Enabled})
}

// handleTestRobot sends a test signal to one robot, enabled or not.
func (s *Server) handleTestRobot(w http.ResponseWriter, r *http.Request) {
	report, err := s.dispatcher.Test(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, dispatch.ErrTargetNotFound) {
			writeNotFound(w, "robot not found")
			return
		}
		writeInternalError(w, "failed to send test signal")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleSerialPorts lists serial devices present on the host.
func (s *Server) handleSerialPorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.listPorts()
	if err != nil {
		s.logger.Warn("serial port enumeration failed", "error", err)
		writeInternalError(w, "failed to list serial ports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ports": ports, "count": len(ports)})
}
