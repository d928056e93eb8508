// Package api serves the bridge's HTTP surface: device and entity state,
// entity commands and a raw request passthrough for debugging.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/device"
	"bosebridge/internal/projection"
)

const commandTimeout = 15 * time.Second

// Server is the HTTP API over the managed device set.
type Server struct {
	registry *device.Registry
	logger   *zap.Logger
	srv      *http.Server
}

func NewServer(port int, registry *device.Registry, logger *zap.Logger) *Server {
	s := &Server{
		registry: registry,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/devices", s.handleDevices)
	mux.HandleFunc("GET /api/devices/{guid}", s.handleDevice)
	mux.HandleFunc("POST /api/devices/{guid}/command", s.handleCommand)
	mux.HandleFunc("POST /api/devices/{guid}/request", s.handleRequest)
	return s.logRequests(mux)
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

type deviceView struct {
	GUID      string                `json:"guid"`
	Name      string                `json:"name,omitempty"`
	Connected bool                  `json:"connected"`
	Entities  []projection.Snapshot `json:"entities"`
}

func viewOf(d *device.Device) deviceView {
	return deviceView{
		GUID:      d.GUID(),
		Name:      d.Name(),
		Connected: d.Connected(),
		Entities:  d.Snapshots(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"devices": len(s.registry.Devices()),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Devices()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, viewOf(d))
	}
	s.respond(w, http.StatusOK, views)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.registry.Device(r.PathValue("guid"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown device")
		return
	}
	s.respond(w, http.StatusOK, viewOf(d))
}

// commandRequest carries one entity command. entity_id defaults to the
// device's media player; the parameter fields are per-action.
type commandRequest struct {
	EntityID string `json:"entity_id,omitempty"`
	Action   string `json:"action"`

	Volume   *float64 `json:"volume,omitempty"`
	Muted    *bool    `json:"muted,omitempty"`
	Position *int     `json:"position,omitempty"`
	Source   string   `json:"source,omitempty"`
	Option   string   `json:"option,omitempty"`
	Value    *int     `json:"value,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`
	Members  []string `json:"members,omitempty"`
	Slot     *int     `json:"slot,omitempty"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	d, ok := s.registry.Device(r.PathValue("guid"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown device")
		return
	}

	var cmd commandRequest
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid command body")
		return
	}
	if cmd.Action == "" {
		s.respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	entityID := cmd.EntityID
	if entityID == "" {
		entityID = d.Media().EntityID()
	}
	entity, ok := d.Entity(entityID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown entity")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.execute(ctx, entity, cmd); err != nil {
		status := http.StatusBadRequest
		var rpcErr *bose.Error
		if errors.As(err, &rpcErr) {
			status = http.StatusBadGateway
		}
		s.respondError(w, status, err.Error())
		return
	}
	s.respond(w, http.StatusOK, entity.Snapshot())
}

func (s *Server) execute(ctx context.Context, entity projection.Entity, cmd commandRequest) error {
	switch e := entity.(type) {
	case *projection.MediaPlayer:
		return s.executeMedia(ctx, e, cmd)
	case *projection.AudioSlider:
		if cmd.Action != "set_value" || cmd.Value == nil {
			return fmt.Errorf("slider entities take action set_value with a value")
		}
		return e.SetValue(ctx, *cmd.Value)
	case *projection.ModeSelect:
		if cmd.Action != "select_option" || cmd.Option == "" {
			return fmt.Errorf("select entities take action select_option with an option")
		}
		return e.SelectOption(ctx, cmd.Option)
	case *projection.AccessorySwitch:
		if cmd.Action != "set_enabled" || cmd.Enabled == nil {
			return fmt.Errorf("switch entities take action set_enabled with enabled")
		}
		return e.SetEnabled(ctx, *cmd.Enabled)
	case *projection.PresetSet:
		if cmd.Action != "play_preset" || cmd.Slot == nil {
			return fmt.Errorf("preset entities take action play_preset with a slot")
		}
		return e.Play(ctx, *cmd.Slot)
	default:
		return fmt.Errorf("entity %s takes no commands", entity.EntityID())
	}
}

func (s *Server) executeMedia(ctx context.Context, m *projection.MediaPlayer, cmd commandRequest) error {
	switch cmd.Action {
	case "turn_on":
		return m.TurnOn(ctx)
	case "turn_off":
		return m.TurnOff(ctx)
	case "play":
		return m.Play(ctx)
	case "pause":
		return m.Pause(ctx)
	case "stop":
		return m.Stop(ctx)
	case "next_track":
		return m.NextTrack(ctx)
	case "previous_track":
		return m.PreviousTrack(ctx)
	case "seek":
		if cmd.Position == nil {
			return fmt.Errorf("seek requires position")
		}
		return m.SeekTo(ctx, *cmd.Position)
	case "set_volume":
		if cmd.Volume == nil {
			return fmt.Errorf("set_volume requires volume")
		}
		return m.SetVolume(ctx, *cmd.Volume)
	case "mute":
		if cmd.Muted == nil {
			return fmt.Errorf("mute requires muted")
		}
		return m.SetMuted(ctx, *cmd.Muted)
	case "select_source":
		if cmd.Source == "" {
			return fmt.Errorf("select_source requires source")
		}
		return m.SelectSource(ctx, cmd.Source)
	case "join":
		if len(cmd.Members) == 0 {
			return fmt.Errorf("join requires members")
		}
		return m.Join(ctx, cmd.Members)
	case "unjoin":
		return m.Unjoin(ctx)
	default:
		return fmt.Errorf("unknown media action %q", cmd.Action)
	}
}

// passthroughRequest is a raw RPC forwarded to the device unchanged. Meant
// for debugging against endpoints the bridge does not project.
type passthroughRequest struct {
	Method   string          `json:"method"`
	Resource string          `json:"resource"`
	Body     json.RawMessage `json:"body,omitempty"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	d, ok := s.registry.Device(r.PathValue("guid"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "unknown device")
		return
	}

	var req passthroughRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Method == "" || req.Resource == "" {
		s.respondError(w, http.StatusBadRequest, "method and resource are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	var body any
	if len(req.Body) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(req.Body, &decoded); err != nil {
			s.respondError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		body = decoded
	}

	var out json.RawMessage
	if err := d.Request(ctx, req.Method, req.Resource, body, &out); err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if len(out) == 0 {
		out = json.RawMessage("{}")
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}
