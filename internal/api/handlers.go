// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grimm.is/wlanguard/internal/actionlog"
	"grimm.is/wlanguard/internal/mitigation"
)

// ThreatRequest is the body of POST /api/threats.
type ThreatRequest struct {
	Category string                   `json:"category"`
	Context  mitigation.PacketContext `json:"context"`
}

// ResetRequest is the optional body of POST /api/reset. Absent fields fall
// back to the configured reset behaviour.
type ResetRequest struct {
	Interfaces  []string `json:"interfaces,omitempty"`
	TruncateLog *bool    `json:"truncate_log,omitempty"`
}

// ActionsResponse is returned by the action log endpoints.
type ActionsResponse struct {
	Entries []actionlog.Entry `json:"entries"`
	Count   int               `json:"count"`
}

const defaultHistoryLimit = 100

// WriteJSON encodes payload as the response body.
func WriteJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, map[string]string{"error": message})
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v untouched.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleThreat dispatches one classified threat. Unknown categories are not
// an error: they produce a PASS report.
func (s *Server) handleThreat(w http.ResponseWriter, r *http.Request) {
	var req ThreatRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		WriteError(w, http.StatusBadRequest, "category is required")
		return
	}
	if req.Context == nil {
		req.Context = mitigation.PacketContext{}
	}

	rep := s.mitigator.HandleReport(r.Context(), req.Category, req.Context)
	WriteJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	opts := s.mitigator.DefaultResetOptions()
	if req.Interfaces != nil {
		opts.Interfaces = req.Interfaces
	}
	if req.TruncateLog != nil {
		opts.TruncateLog = *req.TruncateLog
	}

	rep := s.mitigator.Reset(r.Context(), opts)
	WriteJSON(w, http.StatusOK, rep)
}

// handleActions returns the in-memory action log. With drain=true only the
// entries not drained before are returned and the drain cursor advances.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	log := s.mitigator.Toolkit().Log()

	var entries []actionlog.Entry
	if drain, _ := strconv.ParseBool(r.URL.Query().Get("drain")); drain {
		entries = log.Drain()
	} else {
		entries = log.Entries()
	}
	if entries == nil {
		entries = []actionlog.Entry{}
	}
	WriteJSON(w, http.StatusOK, ActionsResponse{Entries: entries, Count: len(entries)})
}

// handleHistory reads persisted entries, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		WriteError(w, http.StatusServiceUnavailable, "no action log store configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("failed to read action history")
		WriteError(w, http.StatusInternalServerError, "failed to read action history")
		return
	}
	if entries == nil {
		entries = []actionlog.Entry{}
	}
	WriteJSON(w, http.StatusOK, ActionsResponse{Entries: entries, Count: len(entries)})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.mitigator.Toolkit().Capabilities())
}

// handleCounters returns packet counts of installed kernel drop rules.
func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		WriteError(w, http.StatusServiceUnavailable, "kernel backend not configured")
		return
	}
	counters, err := s.counters.Counters()
	if err != nil {
		s.logger.WithError(err).Warn("failed to read rule counters")
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, counters)
}
