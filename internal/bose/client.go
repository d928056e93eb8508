package bose

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// subscribedTopics is the notification set requested from every speaker.
// Topics the device does not support are ignored server-side.
var subscribedTopics = []string{
	TopicNowPlaying,
	TopicAudioVolume,
	TopicPowerControl,
	TopicActiveGroups,
	TopicBluetoothSinkList,
	TopicBluetoothSinkStatus,
	TopicBluetoothSourceStatus,
	TopicAccessories,
	TopicAudioMode,
	TopicDualMono,
	TopicRebroadcastLatency,
	TopicCec,
	TopicBattery,
	TopicWifiStatus,
	TopicSources,
}

// Controller is the device connection surface projections depend on. Speaker
// implements it for real hardware, MockSpeaker for tests.
type Controller interface {
	// DeviceID returns the speaker's stable GUID.
	DeviceID() string

	// HasCapability reports whether the device advertises the resource path.
	// The report is advisory; callers still handle "not supported" errors.
	HasCapability(resource string) bool

	// Connected reports whether the control connection is up.
	Connected() bool

	// Request performs one RPC. body is marshalled as the request body (nil
	// for none); a non-nil out receives the unmarshalled response body.
	Request(ctx context.Context, method, resource string, body, out any) error
}

// Receiver is invoked for every push notification from the speaker.
type Receiver func(msg Message)

// TokenFunc supplies the current control token for outbound requests.
type TokenFunc func() string

const (
	controlPort    = 8082
	subprotocol    = "eco2"
	requestTimeout = 10 * time.Second
)

// Speaker is a persistent control connection to one physical device.
type Speaker struct {
	host     string
	token    TokenFunc
	logger   *zap.Logger
	clientID string

	conn      *websocket.Conn
	connected bool
	connMu    sync.RWMutex
	writeMu   sync.Mutex

	reqID   int
	reqIDMu sync.Mutex

	pending   map[int]chan Message
	pendingMu sync.Mutex

	receivers   []Receiver
	receiversMu sync.RWMutex

	deviceID     string
	capabilities map[string]struct{}
	capsMu       sync.RWMutex

	// onUnauthorized is called (in its own goroutine) whenever a request
	// comes back 401, so the session can refresh out of band.
	onUnauthorized func()

	ctx       context.Context
	cancel    context.CancelFunc
	reconnect bool
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithUnauthorizedHook registers a callback fired on 401 responses.
func WithUnauthorizedHook(f func()) Option {
	return func(s *Speaker) { s.onUnauthorized = f }
}

// NewSpeaker creates a client for the speaker at host. The connection is not
// opened until Connect.
func NewSpeaker(host string, token TokenFunc, logger *zap.Logger, opts ...Option) *Speaker {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		host:         host,
		token:        token,
		logger:       logger,
		clientID:     uuid.NewString(),
		pending:      make(map[int]chan Message),
		capabilities: make(map[string]struct{}),
		ctx:          ctx,
		cancel:       cancel,
		reconnect:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Host returns the address the client dials.
func (s *Speaker) Host() string { return s.host }

// DeviceID returns the GUID reported by the device, empty before Connect.
func (s *Speaker) DeviceID() string {
	s.capsMu.RLock()
	defer s.capsMu.RUnlock()
	return s.deviceID
}

// HasCapability reports whether the device's capability report lists the
// resource path.
func (s *Speaker) HasCapability(resource string) bool {
	s.capsMu.RLock()
	defer s.capsMu.RUnlock()
	_, ok := s.capabilities[resource]
	return ok
}

// Connected reports whether the websocket is up.
func (s *Speaker) Connected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected
}

// AttachReceiver registers a push callback. Registration is additive and
// lives as long as the connection; there is no unregister.
func (s *Speaker) AttachReceiver(r Receiver) {
	s.receiversMu.Lock()
	defer s.receiversMu.Unlock()
	s.receivers = append(s.receivers, r)
}

// Connect dials the control endpoint, loads the capability report and
// subscribes to push notifications.
func (s *Speaker) Connect(ctx context.Context) error {
	s.connMu.Lock()
	if s.connected {
		s.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	// Speakers serve a self-signed certificate on the control port.
	dialer := websocket.Dialer{
		Subprotocols:     []string{subprotocol},
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: true},
		HandshakeTimeout: requestTimeout,
	}

	// A bare host gets the standard control port; host:port is used as-is.
	addr := s.host
	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, controlPort)
	}
	url := fmt.Sprintf("wss://%s?product=%s", addr, s.clientID)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		s.connMu.Unlock()
		return fmt.Errorf("failed to dial speaker %s: %w", s.host, err)
	}
	s.conn = conn
	s.connected = true
	s.reconnect = true
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.connMu.Unlock()

	go s.receiveMessages()

	var caps Capabilities
	if err := s.Request(ctx, http.MethodGet, TopicCapabilities, nil, &caps); err != nil {
		s.closeConn()
		return fmt.Errorf("failed to read capabilities: %w", err)
	}

	var info SystemInfo
	if err := s.Request(ctx, http.MethodGet, TopicSystemInfo, nil, &info); err != nil {
		s.closeConn()
		return fmt.Errorf("failed to read system info: %w", err)
	}

	s.capsMu.Lock()
	s.capabilities = caps.Endpoints()
	s.deviceID = info.GUID
	s.capsMu.Unlock()

	if err := s.subscribe(ctx); err != nil {
		s.logger.Warn("Failed to subscribe to notifications", zap.Error(err))
	}

	s.logger.Info("Connected to speaker",
		zap.String("host", s.host),
		zap.String("guid", info.GUID),
		zap.String("name", info.Name))
	return nil
}

// Disconnect closes the connection and stops reconnect attempts.
func (s *Speaker) Disconnect() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if !s.connected {
		return nil
	}

	s.reconnect = false
	s.cancel()
	s.connected = false

	if s.conn != nil {
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
		s.conn = nil
	}

	s.logger.Info("Disconnected from speaker", zap.String("host", s.host))
	return nil
}

func (s *Speaker) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connected = false
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Speaker) nextReqID() int {
	s.reqIDMu.Lock()
	defer s.reqIDMu.Unlock()
	s.reqID++
	return s.reqID
}

// Request performs one RPC against the device and decodes the response body
// into out. A non-2xx response is returned as *Error; a 401 additionally
// fires the unauthorized hook.
func (s *Speaker) Request(ctx context.Context, method, resource string, body, out any) error {
	s.connMu.RLock()
	if !s.connected {
		s.connMu.RUnlock()
		return fmt.Errorf("not connected to %s", s.host)
	}
	conn := s.conn
	s.connMu.RUnlock()

	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		raw = b
	}

	reqID := s.nextReqID()
	msg := Message{
		Header: Header{
			Resource: resource,
			Method:   method,
			MsgType:  "REQUEST",
			ReqID:    reqID,
			Token:    s.token(),
			Version:  1,
		},
		Body: raw,
	}

	respChan := make(chan Message, 1)
	s.pendingMu.Lock()
	s.pending[reqID] = respChan
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, reqID)
		s.pendingMu.Unlock()
	}()

	s.writeMu.Lock()
	err := conn.WriteJSON(msg)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.Header.Status >= 300 {
			rpcErr := errorFromResponse(&resp)
			if rpcErr.Status == http.StatusUnauthorized && s.onUnauthorized != nil {
				go s.onUnauthorized()
			}
			return rpcErr
		}
		if out != nil {
			if err := Decode(resp.Body, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", resource, err)
			}
		}
		return nil
	case <-time.After(requestTimeout):
		return fmt.Errorf("timeout waiting for %s response", resource)
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("connection closed")
	}
}

func (s *Speaker) subscribe(ctx context.Context) error {
	type notification struct {
		Resource string `json:"resource"`
		Version  int    `json:"version"`
	}
	notifications := make([]notification, 0, len(subscribedTopics))
	for _, topic := range subscribedTopics {
		notifications = append(notifications, notification{Resource: topic, Version: 1})
	}

	body := map[string]any{"notifications": notifications}
	return s.Request(ctx, http.MethodPut, TopicSubscription, body, nil)
}

// receiveMessages reads frames until the connection drops, routing responses
// to their waiting request and fanning pushes out to receivers.
func (s *Speaker) receiveMessages() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn == nil {
			return
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logger.Error("Failed to read from speaker", zap.String("host", s.host), zap.Error(err))
			s.handleDisconnect()
			return
		}

		if msg.IsNotification() {
			s.dispatch(msg)
			continue
		}

		s.pendingMu.Lock()
		if ch, ok := s.pending[msg.Header.ReqID]; ok {
			select {
			case ch <- msg:
			default:
				s.logger.Warn("Response channel full", zap.Int("req_id", msg.Header.ReqID))
			}
		}
		s.pendingMu.Unlock()
	}
}

func (s *Speaker) dispatch(msg Message) {
	s.receiversMu.RLock()
	receivers := append([]Receiver(nil), s.receivers...)
	s.receiversMu.RUnlock()

	for _, r := range receivers {
		r(msg)
	}
}

func (s *Speaker) handleDisconnect() {
	s.connMu.Lock()
	s.connected = false
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	reconnect := s.reconnect
	s.connMu.Unlock()

	s.logger.Warn("Speaker connection lost", zap.String("host", s.host))

	if !reconnect {
		return
	}
	go s.attemptReconnect()
}

func (s *Speaker) attemptReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(backoff):
		}

		s.logger.Info("Attempting to reconnect to speaker", zap.String("host", s.host))

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err := s.Connect(ctx)
		cancel()
		if err != nil {
			s.logger.Error("Reconnect failed", zap.String("host", s.host), zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		s.logger.Info("Reconnected to speaker", zap.String("host", s.host))
		return
	}
}
