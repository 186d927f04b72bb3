package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/aoproc/internal/protocol"
	"github.com/mattjoyce/aoproc/internal/state"
)

const maxJournalLimit = 1000

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	n, err := s.host.Store().Size()
	if err != nil {
		s.logger.Error("failed to read state size", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		StateEntries:  n,
	})
}

// handleMessage handles POST /handle. The body is a raw AO message and the
// reply is always 200 with an encoded Response, Error replies included.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "message body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	out := s.host.Handle(string(body))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// handleGetState handles GET /state with a content fingerprint as ETag.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	// A poisoned store is unavailable, not empty.
	snapshot, err := s.host.Store().List()
	if err != nil {
		s.logger.Error("failed to read state", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	raw, err := protocol.EncodeState(snapshot)
	if err != nil {
		s.logger.Error("failed to encode state snapshot", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read state")
		return
	}
	fp, err := state.Fingerprint(snapshot)
	if err != nil {
		s.logger.Error("failed to fingerprint state", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read state")
		return
	}

	etag := strconv.Quote(fp)
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// handleClearState handles DELETE /state.
func (s *Server) handleClearState(w http.ResponseWriter, r *http.Request) {
	cleared := s.host.ClearState()
	status := http.StatusOK
	if !cleared {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, ClearResponse{Cleared: cleared})
}

// handleJournal handles GET /journal?limit=N.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxJournalLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	recs, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	s.writeJSON(w, http.StatusOK, JournalResponse{Records: recs})
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
