// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"

	"github.com/heyqbnk/mini-apps-backend-template/fanout"
	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
	"github.com/heyqbnk/mini-apps-backend-template/lib/netutil"
	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
)

const (
	// initTimeout bounds the wait for connection_init.
	initTimeout = 10 * time.Second

	// SessionQueue is how many frames a session buffers for its writer.
	// Beyond it, events for that session are dropped.
	SessionQueue = 64

	maxFrameBytes     = 64 << 10
	maxSubscriptions  = 32
	frameWriteTimeout = 5 * time.Second
)

// Frame types.
const (
	FrameConnectionInit  = "connection_init"
	FrameConnectionAck   = "connection_ack"
	FrameConnectionError = "connection_error"
	FrameSubscribe       = "subscribe"
	FrameNext            = "next"
	FrameComplete        = "complete"
	FrameError           = "error"
	FramePing            = "ping"
	FramePong            = "pong"
)

// Frame is one WebSocket message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Trigger string          `json:"trigger,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitPayload is the connection_init payload.
type InitPayload struct {
	LaunchParams string `json:"x-launch-params"`
}

func errorFrame(frameType, id string, apiErr *Error) Frame {
	payload, _ := json.Marshal(apiErr)
	return Frame{Type: frameType, ID: id, Payload: payload}
}

// adminTriggers carry data only administrators may see. Sessions on the
// public endpoint cannot subscribe to them.
var adminTriggers = map[string]bool{
	TriggerUserUpdated: true,
}

// subscriptionHub accepts WebSocket sessions and tracks them so Close
// can end them. An admin hub only completes the handshake for
// administrators and allows every trigger.
type subscriptionHub struct {
	server   *Server
	admin    bool
	upgrader websocket.Server

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
	wg       sync.WaitGroup
}

func newSubscriptionHub(server *Server, admin bool) *subscriptionHub {
	hub := &subscriptionHub{server: server, admin: admin, sessions: make(map[*session]struct{})}
	// No Handshake: any Origin is accepted. Mini-apps are served from
	// the host's domains and authenticate with launch parameters.
	hub.upgrader = websocket.Server{Handler: hub.serve}
	return hub
}

func (h *subscriptionHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.upgrader.ServeHTTP(w, r)
}

func (h *subscriptionHub) track(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *subscriptionHub) untrack(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	h.wg.Done()
}

func (h *subscriptionHub) close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	h.wg.Wait()
}

func (h *subscriptionHub) serve(conn *websocket.Conn) {
	conn.MaxPayloadBytes = maxFrameBytes
	s := &session{
		hub:           h,
		conn:          conn,
		logger:        h.server.logger.With("remote", conn.Request().RemoteAddr, "admin_endpoint", h.admin),
		outbound:      make(chan Frame, SessionQueue),
		done:          make(chan struct{}),
		subscriptions: make(map[string]fanout.SubscriptionID),
	}
	if !h.track(s) {
		conn.Close()
		return
	}
	defer h.untrack(s)
	defer s.close()

	identity, err := s.handshake()
	if err != nil {
		s.logger.Debug("websocket handshake failed", "error", err)
		return
	}
	s.logger = s.logger.With("identity", identity)
	s.logger.Debug("websocket session started")

	go s.writeLoop()
	s.readLoop()
}

// session is one authenticated WebSocket connection. Only writeLoop
// writes to conn once the handshake is done.
type session struct {
	hub    *subscriptionHub
	conn   *websocket.Conn
	logger *slog.Logger

	outbound  chan Frame
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64

	mu            sync.Mutex
	subscriptions map[string]fanout.SubscriptionID
	closed        bool
}

func (s *session) send(frame Frame) error {
	s.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	return websocket.JSON.Send(s.conn, frame)
}

// handshake reads connection_init and answers it. On failure it has
// already told the client why.
func (s *session) handshake() (launchparams.Identity, error) {
	s.conn.SetReadDeadline(time.Now().Add(initTimeout))
	var data []byte
	if err := websocket.Message.Receive(s.conn, &data); err != nil {
		return launchparams.Identity{}, err
	}
	s.conn.SetReadDeadline(time.Time{})

	var frame Frame
	var payload InitPayload
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != FrameConnectionInit {
		return launchparams.Identity{}, s.reject(badParameters("expected connection_init"))
	}
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return launchparams.Identity{}, s.reject(badParameters("connection_init payload must be an object"))
		}
	}

	identity, err := s.hub.server.authenticator.Authenticate(launchparams.FromString(payload.LaunchParams))
	if err != nil {
		apiErr, _ := classify(err)
		return launchparams.Identity{}, s.reject(apiErr)
	}
	if s.hub.admin {
		if err := s.requireAdmin(identity); err != nil {
			return launchparams.Identity{}, err
		}
	}
	if err := s.send(Frame{Type: FrameConnectionAck}); err != nil {
		return launchparams.Identity{}, err
	}
	return identity, nil
}

func (s *session) requireAdmin(identity launchparams.Identity) error {
	isAdmin, err := s.hub.server.users.IsAdmin(s.conn.Request().Context(), identity.UserID())
	if err != nil {
		apiErr, unexpected := classify(err)
		if unexpected {
			s.hub.server.reporter.Report(err, report.Error)
		}
		return s.reject(apiErr)
	}
	if !isAdmin {
		s.logger.Info("admin subscriptions denied", "identity", identity)
		return s.reject(forbidden())
	}
	return nil
}

func (s *session) reject(apiErr *Error) error {
	if err := s.send(errorFrame(FrameConnectionError, "", apiErr)); err != nil {
		s.logger.Debug("sending connection_error", "error", err)
	}
	return apiErr
}

func (s *session) readLoop() {
	for {
		var data []byte
		if err := websocket.Message.Receive(s.conn, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				s.enqueue(errorFrame(FrameError, "", badParameters("frame too large")))
				continue
			}
			if !netutil.IsExpectedCloseError(err) && !s.isClosed() {
				s.logger.Debug("websocket receive failed", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.enqueue(errorFrame(FrameError, "", badParameters("invalid frame")))
			continue
		}
		switch frame.Type {
		case FrameSubscribe:
			s.subscribe(frame.ID, frame.Trigger)
		case FrameComplete:
			s.unsubscribe(frame.ID)
		case FramePing:
			s.enqueue(Frame{Type: FramePong})
		default:
			s.enqueue(errorFrame(FrameError, frame.ID, badParameters("unsupported frame type")))
		}
	}
}

func (s *session) subscribe(id, trigger string) {
	if id == "" || trigger == "" {
		s.enqueue(errorFrame(FrameError, id, badParameters("subscribe needs an id and a trigger")))
		return
	}
	if adminTriggers[trigger] && !s.hub.admin {
		s.enqueue(errorFrame(FrameError, id, forbidden()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return
	case s.subscriptions[id] != 0:
		s.enqueue(errorFrame(FrameError, id, badParameters("subscription id already in use")))
		return
	case len(s.subscriptions) >= maxSubscriptions:
		s.enqueue(errorFrame(FrameError, id, badParameters("too many subscriptions")))
		return
	}
	s.subscriptions[id] = s.hub.server.bus.Subscribe(trigger, func(_ context.Context, payload fanout.Payload) error {
		var value any
		if err := payload.Decode(&value); err != nil {
			return err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return err
		}
		s.enqueue(Frame{Type: FrameNext, ID: id, Payload: encoded})
		return nil
	})
}

// unsubscribe ignores unknown ids; the client may complete a
// subscription it never successfully opened.
func (s *session) unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subscription, ok := s.subscriptions[id]; ok {
		s.hub.server.bus.Unsubscribe(subscription)
		delete(s.subscriptions, id)
	}
}

// enqueue never blocks: bus handlers call it.
func (s *session) enqueue(frame Frame) {
	if s.isClosed() {
		return
	}
	select {
	case s.outbound <- frame:
	default:
		dropped := s.dropped.Add(1)
		s.logger.Debug("session queue full, frame dropped", "type", frame.Type, "id", frame.ID, "dropped", dropped)
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case frame := <-s.outbound:
			if err := s.send(frame); err != nil {
				if !s.isClosed() {
					s.logger.Debug("websocket send failed", "error", err)
				}
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close unsubscribes everything and closes the connection. Idempotent.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		for id, subscription := range s.subscriptions {
			s.hub.server.bus.Unsubscribe(subscription)
			delete(s.subscriptions, id)
		}
		s.mu.Unlock()
		s.conn.Close()
		if dropped := s.dropped.Load(); dropped > 0 {
			s.logger.Info("websocket session closed", "dropped_frames", dropped)
		}
	})
}
