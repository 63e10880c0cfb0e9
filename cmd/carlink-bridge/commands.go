package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/carlink/internal/audio"
	"github.com/muurk/carlink/internal/config"
	"github.com/muurk/carlink/internal/driver"
	"github.com/muurk/carlink/internal/logging"
	"github.com/muurk/carlink/internal/protocol"
	"github.com/muurk/carlink/internal/reconnect"
	"github.com/muurk/carlink/internal/server"
	"github.com/muurk/carlink/internal/session"
)

// Run command and flags
var (
	configPath  string
	logLevel    string
	monitor     bool
	monitorAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dongle bridge",
	Long: `Run the bridge against an attached dongle.

The bridge locates a compatible dongle on the USB bus, starts the
projection session, and runs until interrupted. Configuration comes from
an optional YAML file; missing settings use built-in defaults.`,
	Example: `  # Run with defaults
  carlink-bridge run

  # Run with a config file and verbose logging
  carlink-bridge run --config /etc/carlink/config.yaml --log-level debug

  # Run with the monitor server for frontends
  carlink-bridge run --monitor`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration file (optional)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to CARLINK_LOG_LEVEL")
	runCmd.Flags().BoolVar(&monitor, "monitor", false, "Enable the monitor server")
	runCmd.Flags().StringVar(&monitorAddr, "monitor-addr", "", "Monitor server listen address (overrides config)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if monitor {
		cfg.Monitor.Enabled = true
	}
	if monitorAddr != "" {
		cfg.Monitor.Addr = monitorAddr
	}

	controls := &bridgeControls{}

	var srv *server.Server
	if cfg.Monitor.Enabled {
		srv = server.New(cfg.Monitor, controls)
		if err := srv.Start(); err != nil {
			return err
		}
	}

	var sup *reconnect.Supervisor
	runner := func(failed func(error)) (io.Closer, error) {
		return startSession(cfg, srv, sup, controls, failed)
	}
	sup = reconnect.New(runner, cfg.Reconnect)
	sup.OnStatus(func(st reconnect.Status) {
		if srv != nil {
			srv.Publish(session.Event{Kind: session.EventStatus, Status: string(st)})
		}
	})
	sup.Start()

	logging.Info("Bridge running, press Ctrl-C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logging.Info("Shutdown signal received, stopping bridge...")
	sup.Stop()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Monitor server shutdown", zap.Error(err))
		}
	}
	return nil
}

// startSession assembles one driver/session pair and brings it up.
func startSession(cfg *config.Config, srv *server.Server, sup *reconnect.Supervisor,
	controls *bridgeControls, failed func(error)) (io.Closer, error) {

	drv := driver.New()
	player := audio.NewPlayer(cfg.Audio)
	sess := session.New(drv, cfg, player, session.Hooks{})

	drv.OnMessage(sess.HandleMessage)
	drv.OnFailure(func(err error) {
		// The failure callback runs on a driver goroutine the
		// supervisor is about to tear down; hand off.
		go failed(err)
	})
	sess.OnEvent(func(ev session.Event) {
		if ev.Kind == session.EventPhonePlugged {
			sup.NotePhoneConnected()
		}
		if srv != nil {
			srv.Publish(ev)
		}
	})

	if err := drv.Initialise(nil); err != nil {
		return nil, err
	}
	sess.Start()
	if err := drv.Start(cfg); err != nil {
		sess.Stop()
		drv.Close()
		return nil, err
	}

	// No audio device is wired up yet; drain at playback rate so the
	// buffer accounting stays honest. A real output replaces this with
	// its own Pull calls.
	drain := make(chan struct{})
	go audio.Drain(player, drain)

	controls.set(sess)
	return &sessionHandle{drv: drv, sess: sess, controls: controls, drain: drain}, nil
}

// sessionHandle tears down one driver/session pair.
type sessionHandle struct {
	drv      *driver.Driver
	sess     *session.Session
	controls *bridgeControls
	drain    chan struct{}
}

func (h *sessionHandle) Close() error {
	h.controls.clear(h.sess)
	close(h.drain)
	h.sess.Stop()
	// Best effort; the device may already be gone.
	h.drv.Send(&protocol.SendCloseDongle{})
	return h.drv.Close()
}

// bridgeControls routes control API requests to whichever session is
// currently active.
type bridgeControls struct {
	mu   sync.Mutex
	sess *session.Session
}

func (c *bridgeControls) set(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess = s
}

func (c *bridgeControls) clear(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == s {
		c.sess = nil
	}
}

func (c *bridgeControls) SendKey(name string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return errors.New("no active session")
	}
	return sess.SendKey(name)
}
