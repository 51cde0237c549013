package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/tapassist/internal/config"
	"github.com/sweeney/tapassist/internal/engine"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gpio"
	"github.com/sweeney/tapassist/internal/input"
	"github.com/sweeney/tapassist/internal/journal"
	"github.com/sweeney/tapassist/internal/metrics"
	"github.com/sweeney/tapassist/internal/mqtt"
	"github.com/sweeney/tapassist/internal/status"
	"github.com/sweeney/tapassist/internal/web"
)

// Lifecycle events published on the system topic.
const (
	eventStartup  = "STARTUP"
	eventShutdown = "SHUTDOWN"
)

// startupWait bounds how long STARTUP waits for the first broker connection.
const startupWait = 5 * time.Second

func runDaemon(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	clk := clock.New()
	met := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(clk, status.Config{
		WindowMs:       cfg.Gesture.WindowMs,
		LongPressMs:    cfg.Gesture.LongPressMs,
		PollIntervalMs: cfg.Chime.PollIntervalMs,
		ChimeEnabled:   cfg.Chime.Enabled,
		Backend:        cfg.Feedback.Backend,
		Broker:         cfg.MQTT.Broker,
		HTTPAddr:       cfg.HTTP.Addr,
	})

	// The MQTT client carries telemetry, navigation and remote input for
	// either backend, and is the feedback port for the mqtt backend.
	var client *mqtt.RealClient
	if cfg.MQTT.Broker != "" {
		client, err = mqtt.NewRealClient(mqtt.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Language:    cfg.Feedback.Language,
			Logger:      logger.Named("mqtt"),
			Clock:       clk,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer client.Close()
	}

	port, err := newPort(cfg, clk, client, logger)
	if err != nil {
		return err
	}

	var store *journal.Store
	if cfg.Journal.Path != "" {
		store, err = journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			logger.Warn("journal disabled", zap.String("path", cfg.Journal.Path), zap.Error(err))
		} else {
			defer store.Close()
		}
	}

	logNavigate := engine.NavigatorFunc(func() error {
		logger.Info("navigate")
		return nil
	})
	deps := engine.Deps{
		Clock:     clk,
		Port:      port,
		Logger:    logger,
		Tracker:   tracker,
		Metrics:   met,
		Navigator: logNavigate,
	}
	if client != nil {
		deps.Publisher = client
		deps.Connection = client
		deps.Navigator = client
	}
	if store != nil {
		deps.Journal = store
		deps.Ledger = store
	}

	eng := engine.New(deps, engine.Options{
		Window:       cfg.Gesture.Window(),
		PollInterval: cfg.Chime.PollInterval(),
		ChimeEnabled: cfg.Chime.Enabled,
		Heartbeat:    cfg.MQTT.Heartbeat(),
	})
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer eng.Stop()

	if cfg.GPIO.Enabled {
		press := input.NewPressTracker(clk, eng, cfg.Gesture.LongPress())
		defer press.Stop()
		btn, err := gpio.NewButton(cfg.GPIO.Chip, cfg.GPIO.ButtonPin, cfg.GPIO.Debounce(), press)
		if err != nil {
			logger.Warn("button disabled", zap.String("chip", cfg.GPIO.Chip), zap.Int("pin", cfg.GPIO.ButtonPin), zap.Error(err))
		} else {
			defer btn.Close()
			logger.Info("button ready", zap.String("chip", cfg.GPIO.Chip), zap.Int("pin", cfg.GPIO.ButtonPin))
		}
	}

	// One bucket caps remote input from MQTT and HTTP together.
	limiter := rate.NewLimiter(rate.Limit(cfg.MQTT.InputRate), cfg.MQTT.InputBurst)
	if client != nil {
		client.SubscribeInput(input.Limited(eng, limiter, func(k input.Kind) {
			met.InputDropped(string(k))
		}))
	}

	if cfg.HTTP.Addr != "" {
		opts := web.Options{
			Addr:    cfg.HTTP.Addr,
			Tracker: tracker,
			Metrics: met,
			Input:   eng,
			Limiter: limiter,
			Logger:  logger.Named("http"),
		}
		if store != nil {
			opts.History = store
		}
		srv := web.New(opts)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background()) //nolint:errcheck
		logger.Info("http status server listening", zap.String("addr", cfg.HTTP.Addr))
	}

	var publisher mqtt.Publisher
	var conn mqtt.ConnectionStatus
	if client != nil {
		publisher = client
		conn = client
		publishStartup(client, tracker, logger)
	}

	logger.Info("started",
		zap.String("backend", cfg.Feedback.Backend),
		zap.Duration("window", cfg.Gesture.Window()),
		zap.Bool("chime", cfg.Chime.Enabled),
		zap.String("broker", cfg.MQTT.Broker))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(ctx, publisher, conn, tracker, clk, sigCh, logger)
}

// newPort builds the feedback port for the configured backend, with the
// vibration motor taking over haptics when one is wired.
func newPort(cfg *config.Config, clk clock.Clock, client *mqtt.RealClient, logger *zap.Logger) (feedback.Port, error) {
	var port feedback.Port
	switch cfg.Feedback.Backend {
	case config.BackendMQTT:
		if client == nil {
			return nil, errors.New("mqtt backend requires a broker")
		}
		port = client
	default:
		port = feedback.NewConsolePort(clk, logger.Named("console"))
	}

	if !cfg.GPIO.Enabled || cfg.GPIO.MotorPin == gpio.DefaultMotorPin {
		return port, nil
	}
	line, err := gpio.NewOutputLine(cfg.GPIO.Chip, cfg.GPIO.MotorPin)
	if err != nil {
		logger.Warn("motor disabled", zap.Int("pin", cfg.GPIO.MotorPin), zap.Error(err))
		return port, nil
	}
	return feedback.Combine(port, gpio.NewMotor(clk, line, logger.Named("motor"))), nil
}

// publishStartup waits briefly for the broker, then publishes STARTUP with
// a full status snapshot.
func publishStartup(client *mqtt.RealClient, tracker *status.Tracker, logger *zap.Logger) {
	select {
	case <-client.Ready():
	case <-time.After(startupWait):
	}

	tracker.SetMQTTConnected(client.IsConnected())
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      eventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, eventStartup, ""),
	}
	if err := client.PublishSystem(event); err != nil {
		logger.Warn("failed to publish startup event", zap.Error(err))
	} else {
		logger.Info("published startup event")
	}
}

// runLoop blocks until a signal or ctx cancellation, then publishes
// SHUTDOWN with a final status snapshot. publisher and conn may be nil.
func runLoop(ctx context.Context, publisher mqtt.Publisher, conn mqtt.ConnectionStatus, tracker *status.Tracker, clk clock.Clock, sig <-chan os.Signal, logger *zap.Logger) error {
	reason := "CONTEXT"
	select {
	case s := <-sig:
		logger.Info("received signal, shutting down", zap.String("signal", s.String()))
		reason = signalName(s)
	case <-ctx.Done():
		logger.Info("context done, shutting down")
	}

	if publisher == nil {
		return nil
	}

	event := mqtt.SystemEvent{
		Timestamp: clk.Now(),
		Event:     eventShutdown,
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if conn != nil {
			tracker.SetMQTTConnected(conn.IsConnected())
		}
		event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), eventShutdown, reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		logger.Warn("failed to publish shutdown event", zap.Error(err))
	} else {
		logger.Info("published shutdown event")
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
