// SPDX-License-Identifier: GPL-2.0-only

// Package vestd composes every subsystem package into a running daemon
// process: registry, client manager, dispatcher, effect sequencer,
// integration managers, the metrics/health HTTP server, and the lifecycle
// guard, wired together with an oklog/run.Group exactly the way the
// teacher's Main function composes its HTTP server actor, signal-handling
// actor, and per-resource device-plugin actors.
package vestd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/gousb"
	"github.com/oklog/run"

	"github.com/thirdspace-vest/vestd/broker"
	"github.com/thirdspace-vest/vestd/integrations/filetail"
	"github.com/thirdspace-vest/vestd/integrations/httpgsi"
	"github.com/thirdspace-vest/vestd/integrations/screenhealth"
	"github.com/thirdspace-vest/vestd/lifecycle"
	"github.com/thirdspace-vest/vestd/metricsx"
	"github.com/thirdspace-vest/vestd/protocol"
	"github.com/thirdspace-vest/vestd/registry"
	"github.com/thirdspace-vest/vestd/vest"
	"github.com/thirdspace-vest/vestd/vest/usbdrv"
)

// Config is everything the composition layer needs to start a daemon,
// decoded from viper the same way getConfiguredDevices decodes the
// teacher's resource list.
type Config struct {
	Host        string
	Port        int
	MetricsAddr string
	LogLevel    string
	UseRealUSB  bool // false keeps the daemon hardware-free, mock-only
}

// DefaultConfig mirrors the teacher's flag defaults (":8080" listen,
// "info" log level), adapted to vest-daemon host/port defaults.
func DefaultConfig() Config {
	return Config{
		Host:        lifecycle.DefaultHost,
		Port:        lifecycle.DefaultPort,
		MetricsAddr: "127.0.0.1:9090",
		LogLevel:    "info",
		UseRealUSB:  false,
	}
}

// Daemon owns every long-lived subsystem instance once composed.
type Daemon struct {
	cfg     Config
	logger  log.Logger
	metrics *metricsx.Metrics

	registry     *registry.Registry
	players      *registry.PlayerManager
	games        *registry.GamePlayerMapping
	clients      *broker.ClientManager
	sequencer    *broker.EffectSequencer
	integrations *broker.IntegrationRegistry
	poster       *broker.Poster
	dispatcher   *broker.Dispatcher
	server       *broker.Server

	usbCtx *gousb.Context
}

// New composes every subsystem but does not yet bind a socket or start any
// goroutine; call Run to do that. Effect and filetail-mapping tables are
// read from viper (already populated by LoadConfig), falling back to the
// built-in defaults when the config carries none.
func New(cfg Config, logger log.Logger) (*Daemon, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	reg := registry.New(log.With(logger, "component", "registry"))
	players := registry.NewPlayerManager()
	games := registry.NewGamePlayerMapping()
	clients := broker.NewClientManager()
	sequencer := broker.NewEffectSequencer(clients)
	integrationRegistry := broker.NewIntegrationRegistry()
	poster := broker.NewPoster(log.With(logger, "component", "poster"))
	m := metricsx.New()

	driverFactory := mockOnlyFactory()
	var usbCtx *gousb.Context
	if cfg.UseRealUSB {
		usbCtx = gousb.NewContext()
		driverFactory = func() vest.Driver { return usbdrv.New(usbCtx) }
	}

	effects, err := loadEffects()
	if err != nil {
		return nil, err
	}

	dispatcher := broker.NewDispatcher(
		log.With(logger, "component", "dispatcher"),
		reg, players, games, clients, sequencer, integrationRegistry,
		driverFactory, effects,
	)
	server := broker.NewServer(log.With(logger, "component", "broker"), dispatcher, clients)

	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		registry:     reg,
		players:      players,
		games:        games,
		clients:      clients,
		sequencer:    sequencer,
		integrations: integrationRegistry,
		poster:       poster,
		dispatcher:   dispatcher,
		server:       server,
		usbCtx:       usbCtx,
	}
	if err := d.registerIntegrations(); err != nil {
		return nil, err
	}
	return d, nil
}

// mockOnlyFactory returns a vest.DriverFactory whose Driver always fails to
// enumerate real hardware -- the hardware-free default, matching the
// registry's mock-device path being independent of any real Driver.
func mockOnlyFactory() vest.DriverFactory {
	return func() vest.Driver { return noHardwareDriver{} }
}

type noHardwareDriver struct{}

func (noHardwareDriver) Enumerate() ([]vest.Descriptor, error) { return nil, nil }
func (noHardwareDriver) Open(vest.Selector) (vest.Descriptor, error) {
	return vest.Descriptor{}, fmt.Errorf("no real USB backend configured")
}
func (noHardwareDriver) Send(int, int) error { return fmt.Errorf("no real USB backend configured") }
func (noHardwareDriver) Close() error        { return nil }

// eventSink adapts the Poster into the integrations.EventSink contract: every
// call hops onto the poster's drain goroutine before touching the registry
// or client manager, per spec.md §5's single-loop-owns-state rule.
type eventSink struct {
	poster  *broker.Poster
	reg     *registry.Registry
	clients *broker.ClientManager
	prefix  string
	metrics *metricsx.Metrics
}

func (s eventSink) Trigger(cells []int, speed int) {
	s.poster.Post(func() {
		ctrl := s.reg.GetController("")
		if ctrl == nil {
			return
		}
		for _, cell := range cells {
			ctrl.Trigger(cell, speed)
		}
	})
}

// GameEvent broadcasts <prefix>_game_event to every connected client, per
// spec.md §4.9's on_game_event contract (tested concretely by §8 scenario 6:
// a cs2 "damage" POST must surface as a cs2_game_event with event_type and
// the integration's own params riding along as Extra).
func (s eventSink) GameEvent(eventType string, params map[string]any) {
	if s.metrics != nil {
		s.metrics.IntegrationEvents.WithLabelValues(s.prefix).Inc()
	}
	s.poster.Post(func() {
		ev := protocol.NewEvent(s.prefix + "_game_event")
		extra := make(map[string]any, len(params)+1)
		for k, v := range params {
			extra[k] = v
		}
		extra["event_type"] = eventType
		ev.Extra = extra
		s.clients.Broadcast(ev)
	})
}

// registerIntegrations wires the reference managers (kcd2 file-tailer, cs2
// HTTP receiver, a screen-watcher with no capture backend configured) into
// the integration registry, matching the reference games named in spec.md
// §4.9 and SPEC_FULL.md §3.
func (d *Daemon) registerIntegrations() error {
	mappings, err := loadFiletailMappings()
	if err != nil {
		return err
	}

	kcd2Sink := eventSink{poster: d.poster, reg: d.registry, clients: d.clients, prefix: "kcd2", metrics: d.metrics}
	kcd2 := filetail.New(log.With(d.logger, "integration", "kcd2"), kcd2Sink, mappings)
	d.integrations.Register("kcd2", kcd2)

	cs2Sink := eventSink{poster: d.poster, reg: d.registry, clients: d.clients, prefix: "cs2", metrics: d.metrics}
	cs2 := httpgsi.New(log.With(d.logger, "integration", "cs2"), cs2Sink)
	d.integrations.Register("cs2", cs2)

	screenSink := eventSink{poster: d.poster, reg: d.registry, clients: d.clients, prefix: "screenhealth", metrics: d.metrics}
	screen := screenhealth.New(log.With(d.logger, "integration", "screenhealth"), screenSink, nil)
	d.integrations.Register("screenhealth", screen)
	return nil
}

// Run binds the TCP listener and the metrics/health HTTP server, then blocks
// in an oklog/run.Group exactly as the teacher's Main does: one actor per
// long-lived loop, each with a matching interrupt function that unwinds it
// when any other actor returns.
func (d *Daemon) Run() error {
	addr := net.JoinHostPort(d.cfg.Host, fmt.Sprintf("%d", d.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	metricsListener, err := metricsx.Listen(d.cfg.MetricsAddr)
	if err != nil {
		_ = l.Close()
		return fmt.Errorf("failed to listen on %s: %w", d.cfg.MetricsAddr, err)
	}

	pidPath, err := lifecycle.WritePIDFile(d.cfg.Port)
	if err != nil {
		_ = l.Close()
		_ = metricsListener.Close()
		return fmt.Errorf("failed to write pid file: %w", err)
	}

	var g run.Group
	{
		g.Add(func() error {
			return d.server.Serve(l)
		}, func(error) {
			_ = l.Close()
		})
	}
	{
		done := make(chan struct{})
		g.Add(func() error {
			return d.poster.Run(done)
		}, func(error) {
			close(done)
		})
	}
	{
		mux := metricsx.Mux(d.metrics, func() bool { return true })
		g.Add(func() error {
			if err := serveHTTP(metricsListener, mux); err != nil {
				return fmt.Errorf("metrics server exited unexpectedly: %w", err)
			}
			return nil
		}, func(error) {
			_ = metricsListener.Close()
		})
	}
	{
		term := make(chan os.Signal, 1)
		signal.Notify(term, syscall.SIGINT, syscall.SIGTERM)
		cancel := make(chan struct{})
		g.Add(func() error {
			select {
			case <-term:
				_ = level.Info(d.logger).Log("msg", "caught interrupt; shutting down")
				return nil
			case <-cancel:
				return nil
			}
		}, func(error) {
			close(cancel)
		})
	}

	defer lifecycle.RemovePIDFile(d.cfg.Port)
	_ = level.Info(d.logger).Log("msg", "daemon started", "addr", addr, "pid_file", pidPath)
	if d.usbCtx != nil {
		defer d.usbCtx.Close()
	}
	err = g.Run()
	for prefix, impl := range d.integrations.All() {
		if stopErr := impl.Stop(); stopErr != nil {
			_ = level.Warn(d.logger).Log("msg", "integration stop failed", "integration", prefix, "err", stopErr)
		}
	}
	return err
}

// Poster exposes the composed Poster so cmd/vestd can report its dropped
// count without the CLI layer reaching into broker internals.
func (d *Daemon) Poster() *broker.Poster { return d.poster }

// serveHTTP runs mux over l until it is closed, matching main.go's
// tolerance of http.ErrServerClosed as a clean shutdown rather than a
// reportable error.
func serveHTTP(l net.Listener, mux http.Handler) error {
	if err := http.Serve(l, mux); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
