// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
)

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	return f.dialPath(t, "/ws")
}

func (f *fixture) dialPath(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + path
	conn, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame Frame) {
	t.Helper()
	if err := websocket.JSON.Send(conn, frame); err != nil {
		t.Fatalf("sending %s: %v", frame.Type, err)
	}
}

func receiveFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	var frame Frame
	if err := websocket.JSON.Receive(conn, &frame); err != nil {
		t.Fatalf("receiving frame: %v", err)
	}
	return frame
}

func requireFrameType(t *testing.T, frame Frame, want string) {
	t.Helper()
	if frame.Type != want {
		t.Fatalf("frame type = %q, want %q (payload %s)", frame.Type, want, frame.Payload)
	}
}

func sendInit(t *testing.T, conn *websocket.Conn, userID int64) {
	t.Helper()
	payload, _ := json.Marshal(InitPayload{LaunchParams: launchQuery(userID)})
	sendFrame(t, conn, Frame{Type: FrameConnectionInit, Payload: payload})
}

// connect opens an authenticated session as userID on the public
// endpoint.
func (f *fixture) connect(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	return f.connectTo(t, "/ws", userID)
}

func (f *fixture) connectTo(t *testing.T, path string, userID int64) *websocket.Conn {
	t.Helper()
	conn := f.dialPath(t, path)
	sendInit(t, conn, userID)
	requireFrameType(t, receiveFrame(t, conn), FrameConnectionAck)
	return conn
}

// awaitPong waits until the server has handled every frame sent before it.
func awaitPong(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	sendFrame(t, conn, Frame{Type: FramePing})
	requireFrameType(t, receiveFrame(t, conn), FramePong)
}

// requireClosedByServer expects the server to end the connection.
func requireClosedByServer(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitTimeout))
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err == nil {
		t.Fatalf("received %s, want the connection closed", data)
	} else if strings.Contains(err.Error(), "timeout") {
		t.Fatalf("connection still open after %v", waitTimeout)
	}
}

func TestSubscriptionDeliversEvents(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connect(t, regularUser)

	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "updates", Trigger: "profile.viewed"})
	awaitPong(t, conn)

	if err := f.bus.Publish(context.Background(), "profile.viewed", map[string]any{"vkUserId": 4, "isAdmin": false}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameNext)
	if frame.ID != "updates" {
		t.Errorf("next frame id = %q", frame.ID)
	}
	var payload map[string]any
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		t.Fatalf("decoding next payload: %v", err)
	}
	if payload["vkUserId"] != float64(4) || payload["isAdmin"] != false {
		t.Errorf("next payload = %#v", payload)
	}

	sendFrame(t, conn, Frame{Type: FrameComplete, ID: "updates"})
	awaitPong(t, conn)
	if got := f.bus.Subscribers("profile.viewed"); got != 0 {
		t.Errorf("bus has %d subscribers after complete", got)
	}
}

func TestAdminMutationReachesSubscriber(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connectTo(t, "/ws-adm", adminUser)
	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "1", Trigger: TriggerUserUpdated})
	awaitPong(t, conn)

	status, body := f.do(t, "POST", "/gql-adm/users/1233/role", launchQuery(adminUser), `{"isAdmin":true}`)
	if status != 200 {
		t.Fatalf("SetRole status = %d, body %s", status, body)
	}
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameNext)
	var user User
	if err := json.Unmarshal(frame.Payload, &user); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if user.VKUserID != 1233 || !user.IsAdmin {
		t.Errorf("event user = %+v", user)
	}
}

func TestPublicSessionCannotSeeAdminEvents(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connect(t, regularUser)

	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "spy", Trigger: TriggerUserUpdated})
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameError)
	var apiErr Error
	if err := json.Unmarshal(frame.Payload, &apiErr); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if frame.ID != "spy" || apiErr.Name != ForbiddenError {
		t.Errorf("error frame id %q payload %+v", frame.ID, apiErr)
	}
	if got := f.bus.Subscribers(TriggerUserUpdated); got != 0 {
		t.Fatalf("bus has %d %s subscribers, want 0", got, TriggerUserUpdated)
	}

	// An administrator on the public endpoint is refused the same way.
	adminConn := f.connect(t, adminUser)
	sendFrame(t, adminConn, Frame{Type: FrameSubscribe, ID: "1", Trigger: TriggerUserUpdated})
	requireFrameType(t, receiveFrame(t, adminConn), FrameError)

	status, body := f.do(t, "POST", "/gql-adm/users/4/role", launchQuery(adminUser), `{"isAdmin":true}`)
	if status != 200 {
		t.Fatalf("SetRole status = %d, body %s", status, body)
	}
	awaitPong(t, conn)
}

func TestAdminSubscriptionsRequireAdministrator(t *testing.T) {
	f := defaultFixture(t)

	conn := f.dialPath(t, "/ws-adm")
	sendInit(t, conn, regularUser)
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameConnectionError)
	var apiErr Error
	if err := json.Unmarshal(frame.Payload, &apiErr); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if apiErr.Name != ForbiddenError {
		t.Errorf("connection_error = %+v", apiErr)
	}
	requireClosedByServer(t, conn)

	unknown := f.dialPath(t, "/ws-adm")
	sendInit(t, unknown, unknownUser)
	requireFrameType(t, receiveFrame(t, unknown), FrameConnectionError)
	requireClosedByServer(t, unknown)

	admin := f.connectTo(t, "/ws-adm", adminUser)
	sendFrame(t, admin, Frame{Type: FrameSubscribe, ID: "1", Trigger: TriggerUserUpdated})
	awaitPong(t, admin)
	if got := f.bus.Subscribers(TriggerUserUpdated); got != 1 {
		t.Errorf("bus has %d %s subscribers, want 1", got, TriggerUserUpdated)
	}
}

func TestSubscriptionProtocolErrors(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connect(t, regularUser)

	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "a"})
	requireFrameType(t, receiveFrame(t, conn), FrameError)

	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "a", Trigger: "evt"})
	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "a", Trigger: "evt"})
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameError)
	if frame.ID != "a" {
		t.Errorf("error frame id = %q", frame.ID)
	}

	sendFrame(t, conn, Frame{Type: "bogus", ID: "b"})
	frame = receiveFrame(t, conn)
	requireFrameType(t, frame, FrameError)
	var apiErr Error
	json.Unmarshal(frame.Payload, &apiErr)
	if apiErr.Name != BadParametersError {
		t.Errorf("error payload = %s", frame.Payload)
	}

	if err := websocket.Message.Send(conn, "not json"); err != nil {
		t.Fatalf("sending garbage: %v", err)
	}
	requireFrameType(t, receiveFrame(t, conn), FrameError)

	// Still usable after errors.
	awaitPong(t, conn)
	if got := f.bus.Subscribers("evt"); got != 1 {
		t.Errorf("bus has %d subscribers for evt, want 1", got)
	}
}

func TestConnectionInitRejected(t *testing.T) {
	f := defaultFixture(t)

	conn := f.dial(t)
	payload, _ := json.Marshal(InitPayload{LaunchParams: "vk_app_id=1&sign=bad"})
	sendFrame(t, conn, Frame{Type: FrameConnectionInit, Payload: payload})
	frame := receiveFrame(t, conn)
	requireFrameType(t, frame, FrameConnectionError)
	var apiErr Error
	if err := json.Unmarshal(frame.Payload, &apiErr); err != nil {
		t.Fatalf("decoding error payload: %v", err)
	}
	if apiErr.Name != AuthorizationError {
		t.Errorf("connection_error = %+v", apiErr)
	}
	requireClosedByServer(t, conn)

	other := f.dial(t)
	sendFrame(t, other, Frame{Type: FrameSubscribe, ID: "1", Trigger: "evt"})
	frame = receiveFrame(t, other)
	requireFrameType(t, frame, FrameConnectionError)
	json.Unmarshal(frame.Payload, &apiErr)
	if apiErr.Name != BadParametersError {
		t.Errorf("connection_error = %+v", apiErr)
	}
	requireClosedByServer(t, other)
}

func TestSessionEndUnsubscribes(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connect(t, regularUser)
	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "1", Trigger: "evt"})
	awaitPong(t, conn)
	conn.Close()

	deadline := time.Now().Add(waitTimeout)
	for f.bus.Subscribers("evt") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription outlived its session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerCloseEndsSessions(t *testing.T) {
	f := defaultFixture(t)
	conn := f.connect(t, regularUser)
	sendFrame(t, conn, Frame{Type: FrameSubscribe, ID: "1", Trigger: "evt"})
	awaitPong(t, conn)

	f.server.Close()
	requireClosedByServer(t, conn)
	if got := f.bus.Subscribers("evt"); got != 0 {
		t.Errorf("bus has %d subscribers after Close", got)
	}

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	if late, err := websocket.Dial(url, "", "http://localhost/"); err == nil {
		late.Close()
		t.Error("dial succeeded after Close")
	}
}

func TestSubscriptionsDisabled(t *testing.T) {
	serverConfig := config.Default().Server
	serverConfig.SubscriptionsPath = ""
	serverConfig.AdminSubscriptionsPath = ""
	f := newFixture(t, serverConfig)

	for _, path := range []string{"/ws", "/ws-adm"} {
		status, _ := f.do(t, "GET", path, "", "")
		if status != 404 {
			t.Errorf("GET %s with subscriptions disabled = %d, want 404", path, status)
		}
	}
}
