package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/nerrad567/nebula-core/internal/presence"
)

// FrameResponse is returned for each posted detector frame.
type FrameResponse struct {
	Event *presence.Event `json:"event"`
	State presence.State  `json:"state"`
}

// handleGetPresence returns the current presence state.
func (s *Server) handleGetPresence(w http.ResponseWriter, _ *http.Request) {
	if s.presence == nil {
		writeUnavailable(w, "presence tracking not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.presence.State())
}

// handlePostFrame applies one detector frame {person_found, confidence, frame_id}.
// The response carries the event it triggered, or null.
func (s *Server) handlePostFrame(w http.ResponseWriter, r *http.Request) {
	if s.presence == nil {
		writeUnavailable(w, "presence tracking not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	frame, err := presence.DecodeFrame(body)
	if err != nil {
		if errors.Is(err, presence.ErrInvalidFrame) {
			writeValidationError(w, err.Error())
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}

	resp := FrameResponse{}
	if ev, ok := s.presence.Observe(frame); ok {
		resp.Event = &ev
	}
	resp.State = s.presence.State()
	writeJSON(w, http.StatusOK, resp)
}

// handleSpoken records that the present person spoke. It is accepted only
// while someone is present.
func (s *Server) handleSpoken(w http.ResponseWriter, _ *http.Request) {
	if s.presence == nil {
		writeUnavailable(w, "presence tracking not configured")
		return
	}
	accepted := s.presence.MarkSpoken()
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"state":    s.presence.State(),
	})
}
