// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"bufio"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"grimm.is/wlanguard/internal/errors"
)

const (
	defaultStreamInterval = 250 * time.Millisecond
	streamWriteTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin admits non-browser clients (no Origin) and pages served from
// the API's own host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// handleStream pushes action log entries to a websocket client as they are
// appended, one JSON entry per message. ?since=N replays entries after
// sequence N first; without it only new entries are sent.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := s.mitigator.Toolkit().Log()

	var last uint64
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "since must be a sequence number")
			return
		}
		last = n
	} else if entries := log.Entries(); len(entries) > 0 {
		last = entries[len(entries)-1].Seq
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Time{})

	// The client never sends anything we use; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	interval := s.streamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Debug("action stream opened", "remote", r.RemoteAddr, "since", last)
	for {
		for _, e := range log.Since(last) {
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("action stream closed", "remote", r.RemoteAddr, "error", err)
				return
			}
			last = e.Seq
		}

		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-r.Context().Done():
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// Hijack lets the websocket upgrader take over the connection through the
// request logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New(errors.KindInternal, "response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
