// Package testutil provides a fake speaker websocket server for exercising
// the control client against real frames.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"bosebridge/internal/bose"
)

var upgrader = websocket.Upgrader{
	Subprotocols: []string{"eco2"},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

type connWrapper struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *connWrapper) writeJSON(v any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteJSON(v)
}

type cannedResponse struct {
	status int
	body   json.RawMessage
}

// MockSpeakerServer simulates a speaker's websocket control endpoint over
// TLS. It answers the connect handshake (capabilities, system info,
// subscription) out of the box; everything else is programmed per
// (method, resource).
type MockSpeakerServer struct {
	server *httptest.Server

	mu        sync.Mutex
	responses map[string]cannedResponse
	requests  []bose.Message
	conns     []*connWrapper
}

// NewMockSpeakerServer starts a fake speaker identified by guid, advertising
// the given capability paths.
func NewMockSpeakerServer(guid string, capabilities ...string) *MockSpeakerServer {
	s := &MockSpeakerServer{
		responses: make(map[string]cannedResponse),
	}

	endpoints := make([]map[string]string, 0, len(capabilities))
	for _, c := range capabilities {
		endpoints = append(endpoints, map[string]string{"endpoint": c})
	}
	s.SetResponse("GET", bose.TopicCapabilities, 200, map[string]any{
		"group": []map[string]any{{"apiGroup": "ProductController", "version": 1, "endpoints": endpoints}},
	})
	s.SetResponse("GET", bose.TopicSystemInfo, 200, map[string]any{
		"guid": guid,
		"name": "Mock Speaker",
	})
	s.SetResponse("PUT", bose.TopicSubscription, 200, map[string]any{})

	s.server = httptest.NewTLSServer(http.HandlerFunc(s.handleWebSocket))
	return s
}

// Host returns the host:port the client should dial.
func (s *MockSpeakerServer) Host() string {
	return strings.TrimPrefix(s.server.URL, "https://")
}

func (s *MockSpeakerServer) Close() {
	s.mu.Lock()
	conns := append([]*connWrapper(nil), s.conns...)
	s.conns = nil
	s.mu.Unlock()
	for _, w := range conns {
		w.conn.Close()
	}
	s.server.Close()
}

// SetResponse programs the reply for a (method, resource) pair.
func (s *MockSpeakerServer) SetResponse(method, resource string, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("mock response for %s %s does not marshal: %v", method, resource, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method+" "+resource] = cannedResponse{status: status, body: raw}
}

// Requests returns every frame received so far, oldest first.
func (s *MockSpeakerServer) Requests() []bose.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bose.Message(nil), s.requests...)
}

// LastToken returns the token header of the most recent request.
func (s *MockSpeakerServer) LastToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1].Header.Token
}

// Push broadcasts a notification for topic to every connected client.
func (s *MockSpeakerServer) Push(topic string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("mock push body for %s does not marshal: %v", topic, err))
	}
	msg := bose.Message{
		Header: bose.Header{Resource: topic, Method: "NOTIFY", MsgType: "RESPONSE"},
		Body:   raw,
	}

	s.mu.Lock()
	conns := append([]*connWrapper(nil), s.conns...)
	s.mu.Unlock()

	for _, w := range conns {
		w.writeJSON(msg)
	}
}

func (s *MockSpeakerServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wrapper := &connWrapper{conn: conn}

	s.mu.Lock()
	s.conns = append(s.conns, wrapper)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		for i, c := range s.conns {
			if c == wrapper {
				s.conns = append(s.conns[:i], s.conns[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg bose.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, msg)
		canned, ok := s.responses[msg.Header.Method+" "+msg.Header.Resource]
		s.mu.Unlock()

		resp := bose.Message{
			Header: bose.Header{
				Resource: msg.Header.Resource,
				Method:   msg.Header.Method,
				MsgType:  "RESPONSE",
				ReqID:    msg.Header.ReqID,
				Status:   200,
			},
		}
		if ok {
			resp.Header.Status = canned.status
			resp.Body = canned.body
		}
		wrapper.writeJSON(resp)
	}
}
