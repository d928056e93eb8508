package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/clock"
	"bosebridge/internal/config"
	"bosebridge/internal/projection"
	"bosebridge/internal/router"
)

// DialFunc opens a ready control connection to host.
type DialFunc func(ctx context.Context, host string) (Connection, error)

// Dialer returns the production DialFunc: it dials the speaker's websocket
// control port and completes the capability handshake.
func Dialer(token bose.TokenFunc, logger *zap.Logger, opts ...bose.Option) DialFunc {
	return func(ctx context.Context, host string) (Connection, error) {
		s := bose.NewSpeaker(host, token, logger, opts...)
		if err := s.Connect(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// GUIDResolver finds a device's current address by its GUID. Speakers on
// DHCP move; discovery recovers them when the configured address goes stale.
type GUIDResolver interface {
	Lookup(ctx context.Context, guid string) (string, error)
}

// Manager owns the managed device set: it brings devices up from
// configuration, builds their entities and tears everything down on shutdown.
type Manager struct {
	cfg      *config.Config
	dial     DialFunc
	registry *Registry
	clk      clock.Clock
	notify   projection.NotifyFunc
	logger   *zap.Logger

	resolver  GUIDResolver
	presets   projection.PresetSource
	remaining func() float64
}

// ManagerOption configures optional manager collaborators.
type ManagerOption func(*Manager)

// WithDiscovery enables the discovery fallback for stale configured
// addresses.
func WithDiscovery(r GUIDResolver) ManagerOption {
	return func(m *Manager) { m.resolver = r }
}

// WithPresetSource enables the cloud preset entities.
func WithPresetSource(s projection.PresetSource) ManagerOption {
	return func(m *Manager) { m.presets = s }
}

// WithTokenValidity enables the token validity diagnostic entity. remaining
// returns the seconds until the cloud token expires.
func WithTokenValidity(remaining func() float64) ManagerOption {
	return func(m *Manager) { m.remaining = remaining }
}

func NewManager(cfg *config.Config, dial DialFunc, registry *Registry, clk clock.Clock, notify projection.NotifyFunc, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg,
		dial:     dial,
		registry: registry,
		clk:      clk,
		notify:   notify,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the managed device set.
func (m *Manager) Registry() *Registry { return m.registry }

// Start brings up every configured speaker. One speaker failing to come up
// does not block the rest; Start errors only when no device came up at all.
func (m *Manager) Start(ctx context.Context) error {
	for _, sc := range m.cfg.Speakers {
		dev, err := m.setup(ctx, sc)
		if err != nil {
			m.logger.Error("Failed to set up speaker",
				zap.String("ip", sc.IP),
				zap.String("guid", sc.GUID),
				zap.Error(err))
			continue
		}
		m.registry.Add(dev)
		m.logger.Info("Speaker ready",
			zap.String("guid", dev.GUID()),
			zap.String("name", dev.Name()),
			zap.Int("entities", len(dev.entities)))
	}

	if len(m.registry.Devices()) == 0 {
		return fmt.Errorf("no speakers came up")
	}
	return nil
}

// Stop tears every device down.
func (m *Manager) Stop() {
	for _, dev := range m.registry.Devices() {
		dev.Close()
		m.registry.Remove(dev.GUID())
	}
}

func (m *Manager) setup(ctx context.Context, sc config.SpeakerConfig) (*Device, error) {
	conn, err := m.connect(ctx, sc)
	if err != nil {
		return nil, err
	}

	guid := conn.DeviceID()
	if guid == "" {
		guid = sc.GUID
	}
	if sc.GUID != "" && guid != sc.GUID {
		m.logger.Warn("Configured GUID does not match device",
			zap.String("configured", sc.GUID),
			zap.String("reported", guid))
	}

	name := sc.Name
	if name == "" {
		if info, infoErr := bose.GetSystemInfo(ctx, conn); infoErr == nil {
			name = info.Name
		}
	}

	rt := router.New(m.logger)
	conn.AttachReceiver(func(msg bose.Message) { rt.Dispatch(msg) })

	devCtx, cancel := context.WithCancel(context.Background())
	dev := &Device{
		guid:   guid,
		name:   name,
		conn:   conn,
		router: rt,
		cancel: cancel,
	}

	media := projection.NewMediaPlayer(conn, m.registry, name, labeledSources(m.cfg.Sources), m.notify, m.logger)
	media.Register(rt)
	media.Seed(ctx)
	dev.media = media
	dev.entities = append(dev.entities, media)

	for _, params := range projection.SliderParameters() {
		if !conn.HasCapability(params.Path) {
			continue
		}
		slider := projection.NewAudioSlider(conn, params, m.notify, m.logger)
		if seedErr := slider.Seed(ctx); seedErr != nil {
			if bose.IsNotSupported(seedErr) {
				m.logger.Debug("Device rejects advertised setting",
					zap.String("guid", guid), zap.String("path", params.Path))
				continue
			}
			m.logger.Warn("Audio setting fetch failed",
				zap.String("path", params.Path), zap.Error(seedErr))
		}
		slider.Register(rt)
		dev.entities = append(dev.entities, slider)
	}

	for _, params := range projection.ModeParameters() {
		if !conn.HasCapability(params.Path) {
			continue
		}
		sel := projection.NewModeSelect(conn, params, m.notify, m.logger)
		if seedErr := sel.Seed(ctx); seedErr != nil {
			if bose.IsNotSupported(seedErr) {
				m.logger.Debug("Device rejects advertised setting",
					zap.String("guid", guid), zap.String("path", params.Path))
				continue
			}
			m.logger.Warn("Mode setting fetch failed",
				zap.String("path", params.Path), zap.Error(seedErr))
		}
		sel.Register(rt)
		dev.entities = append(dev.entities, sel)
	}

	if conn.HasCapability(bose.TopicAccessories) {
		for _, acc := range []struct{ class, label string }{
			{projection.AccessorySubs, "Subwoofer"},
			{projection.AccessoryRears, "Rear Speakers"},
		} {
			sw := projection.NewAccessorySwitch(conn, acc.class, acc.label, m.notify, m.logger)
			if seedErr := sw.Seed(ctx); seedErr != nil {
				m.logger.Debug("Accessory fetch failed",
					zap.String("class", acc.class), zap.Error(seedErr))
				continue
			}
			// Only classes the device lets us toggle become entities.
			if !sw.Controllable() {
				continue
			}
			sw.Register(rt)
			dev.entities = append(dev.entities, sw)
		}
	}

	if conn.HasCapability(bose.TopicBattery) {
		batt := projection.NewBattery(conn, m.notify, m.logger)
		if seedErr := batt.Seed(ctx); seedErr != nil && bose.IsNotSupported(seedErr) {
			m.logger.Debug("Device has no battery", zap.String("guid", guid))
		} else {
			batt.Register(rt)
			dev.entities = append(dev.entities, batt)
		}
	}

	if conn.HasCapability(bose.TopicWifiStatus) {
		wifi := projection.NewWifiSignal(conn, m.notify, m.logger)
		if seedErr := wifi.Seed(ctx); seedErr != nil {
			m.logger.Debug("Wifi status fetch failed", zap.Error(seedErr))
		}
		wifi.Register(rt)
		dev.entities = append(dev.entities, wifi)
	}

	if m.presets != nil {
		presets := projection.NewPresetSet(conn, m.presets, m.clk, m.notify, m.logger)
		go presets.Run(devCtx)
		dev.presets = presets
		dev.entities = append(dev.entities, presets)
	}

	if m.remaining != nil {
		dev.entities = append(dev.entities,
			projection.NewAuthValidity(guid, m.remaining, m.notify, m.logger))
	}

	return dev, nil
}

// connect dials the configured address and falls back to discovery when the
// address went stale and the GUID is known.
func (m *Manager) connect(ctx context.Context, sc config.SpeakerConfig) (Connection, error) {
	if sc.IP != "" {
		conn, err := m.dial(ctx, sc.IP)
		if err == nil {
			return conn, nil
		}
		if sc.GUID == "" || m.resolver == nil {
			return nil, err
		}
		m.logger.Warn("Configured address unreachable, trying discovery",
			zap.String("ip", sc.IP), zap.String("guid", sc.GUID), zap.Error(err))
	} else if sc.GUID == "" || m.resolver == nil {
		return nil, fmt.Errorf("speaker has no address and discovery is unavailable")
	}

	host, err := m.resolver.Lookup(ctx, sc.GUID)
	if err != nil {
		return nil, fmt.Errorf("discovery failed for %s: %w", sc.GUID, err)
	}
	return m.dial(ctx, host)
}

func labeledSources(sources []config.SourceConfig) []projection.LabeledSource {
	out := make([]projection.LabeledSource, 0, len(sources))
	for _, s := range sources {
		out = append(out, projection.LabeledSource{
			Label: s.Label,
			SourceRef: projection.SourceRef{
				Source:        s.Source,
				SourceAccount: s.SourceAccount,
				AccountID:     s.AccountID,
			},
		})
	}
	return out
}
