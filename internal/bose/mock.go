package bose

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// RecordedRequest captures one RPC issued against a MockSpeaker.
type RecordedRequest struct {
	Method   string
	Resource string
	Body     map[string]any
}

// MockSpeaker implements Controller for unit tests: responses are
// programmable per (method, resource), every request is recorded, and pushes
// are injected manually.
type MockSpeaker struct {
	deviceID string

	mu           sync.Mutex
	capabilities map[string]struct{}
	responses    map[string]any
	failures     map[string]error
	requests     []RecordedRequest
	receivers    []Receiver
	connected    bool
}

// NewMockSpeaker creates a connected mock identified by deviceID.
func NewMockSpeaker(deviceID string) *MockSpeaker {
	return &MockSpeaker{
		deviceID:     deviceID,
		capabilities: make(map[string]struct{}),
		responses:    make(map[string]any),
		failures:     make(map[string]error),
		connected:    true,
	}
}

func (m *MockSpeaker) DeviceID() string { return m.deviceID }

func (m *MockSpeaker) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected flips the simulated connection state.
func (m *MockSpeaker) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// AddCapability marks resource paths as advertised by the device.
func (m *MockSpeaker) AddCapability(resources ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resources {
		m.capabilities[r] = struct{}{}
	}
}

func (m *MockSpeaker) HasCapability(resource string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.capabilities[resource]
	return ok
}

func key(method, resource string) string { return method + " " + resource }

// SetResponse programs the payload returned for a (method, resource) pair.
func (m *MockSpeaker) SetResponse(method, resource string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key(method, resource)] = payload
	delete(m.failures, key(method, resource))
}

// FailWith programs an error for a (method, resource) pair.
func (m *MockSpeaker) FailWith(method, resource string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key(method, resource)] = err
}

// Requests returns a copy of every recorded request, oldest first.
func (m *MockSpeaker) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// LastRequest returns the most recent request, or false when none was made.
func (m *MockSpeaker) LastRequest() (RecordedRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func (m *MockSpeaker) Request(ctx context.Context, method, resource string, body, out any) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return fmt.Errorf("not connected")
	}

	rec := RecordedRequest{Method: method, Resource: resource}
	if body != nil {
		raw, err := json.Marshal(body)
		if err == nil {
			var asMap map[string]any
			if json.Unmarshal(raw, &asMap) == nil {
				rec.Body = asMap
			}
		}
	}
	m.requests = append(m.requests, rec)

	if err, ok := m.failures[key(method, resource)]; ok {
		m.mu.Unlock()
		return err
	}
	payload, ok := m.responses[key(method, resource)]
	m.mu.Unlock()

	if !ok || out == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mock response: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// AttachReceiver registers a push callback, mirroring Speaker.
func (m *MockSpeaker) AttachReceiver(r Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivers = append(m.receivers, r)
}

// Push delivers a notification for topic to every attached receiver, as if
// the device had sent it.
func (m *MockSpeaker) Push(topic string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("mock push body for %s does not marshal: %v", topic, err))
	}

	msg := Message{
		Header: Header{Resource: topic, Method: "NOTIFY", MsgType: "RESPONSE"},
		Body:   raw,
	}

	m.mu.Lock()
	receivers := append([]Receiver(nil), m.receivers...)
	m.mu.Unlock()

	for _, r := range receivers {
		r(msg)
	}
}
