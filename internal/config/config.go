// Package config loads tapassist configuration from YAML and the environment.
package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Feedback backends.
const (
	BackendMQTT    = "mqtt"
	BackendConsole = "console"
)

// Config is the daemon configuration.
type Config struct {
	Gesture  GestureConfig  `koanf:"gesture"`
	Chime    ChimeConfig    `koanf:"chime"`
	Feedback FeedbackConfig `koanf:"feedback"`
	MQTT     MQTTConfig     `koanf:"mqtt"`
	GPIO     GPIOConfig     `koanf:"gpio"`
	HTTP     HTTPConfig     `koanf:"http"`
	Journal  JournalConfig  `koanf:"journal"`
	Log      LogConfig      `koanf:"log"`
}

// GestureConfig tunes tap classification.
type GestureConfig struct {
	WindowMs    int64 `koanf:"window_ms"`
	LongPressMs int64 `koanf:"long_press_ms"`
}

// Window is the multi-tap window.
func (g GestureConfig) Window() time.Duration {
	return time.Duration(g.WindowMs) * time.Millisecond
}

// LongPress is how long a button must be held to count as a long press.
func (g GestureConfig) LongPress() time.Duration {
	return time.Duration(g.LongPressMs) * time.Millisecond
}

// ChimeConfig controls the hour/half-hour announcements.
type ChimeConfig struct {
	Enabled        bool  `koanf:"enabled"`
	PollIntervalMs int64 `koanf:"poll_interval_ms"`
}

// PollInterval is the wall-clock polling period.
func (c ChimeConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// FeedbackConfig selects where speech and haptics go.
type FeedbackConfig struct {
	Backend  string `koanf:"backend"`
	Language string `koanf:"language"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker      string `koanf:"broker"`
	ClientID    string `koanf:"client_id"`
	TopicPrefix string `koanf:"topic_prefix"`
	// InputRate is the sustained remote input rate (events/s) accepted
	// over MQTT and HTTP; InputBurst is the bucket size.
	InputRate  float64 `koanf:"input_rate"`
	InputBurst int     `koanf:"input_burst"`
	// HeartbeatMs is the period of the HEARTBEAT status event; 0 disables it.
	HeartbeatMs int64 `koanf:"heartbeat_ms"`
}

// Heartbeat is the status heartbeat period.
func (m MQTTConfig) Heartbeat() time.Duration {
	return time.Duration(m.HeartbeatMs) * time.Millisecond
}

// GPIOConfig configures the local button and motor.
type GPIOConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Chip       string `koanf:"chip"`
	ButtonPin  int    `koanf:"button_pin"`
	MotorPin   int    `koanf:"motor_pin"`
	DebounceMs int64  `koanf:"debounce_ms"`
}

// Debounce is the kernel edge debounce period.
func (g GPIOConfig) Debounce() time.Duration {
	return time.Duration(g.DebounceMs) * time.Millisecond
}

// HTTPConfig configures the status server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// JournalConfig configures the sqlite history. An empty path disables it.
type JournalConfig struct {
	Path string `koanf:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Gesture.WindowMs <= 0 {
		return fmt.Errorf("gesture.window_ms must be positive, got %d", c.Gesture.WindowMs)
	}
	if c.Gesture.LongPressMs <= 0 {
		return fmt.Errorf("gesture.long_press_ms must be positive, got %d", c.Gesture.LongPressMs)
	}
	if c.Chime.PollIntervalMs < 1000 || c.Chime.PollIntervalMs > 60000 {
		// A poll interval above one minute can step over a boundary minute.
		return fmt.Errorf("chime.poll_interval_ms must be between 1000 and 60000, got %d", c.Chime.PollIntervalMs)
	}

	switch c.Feedback.Backend {
	case BackendMQTT:
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required for the mqtt feedback backend")
		}
	case BackendConsole:
	default:
		return fmt.Errorf("feedback.backend must be %q or %q, got %q", BackendMQTT, BackendConsole, c.Feedback.Backend)
	}

	if c.MQTT.InputRate < 0 {
		return fmt.Errorf("mqtt.input_rate must not be negative")
	}
	if c.MQTT.InputBurst < 1 {
		return fmt.Errorf("mqtt.input_burst must be at least 1, got %d", c.MQTT.InputBurst)
	}
	if c.MQTT.HeartbeatMs < 0 {
		return fmt.Errorf("mqtt.heartbeat_ms must not be negative, got %d", c.MQTT.HeartbeatMs)
	}

	if c.GPIO.Enabled {
		if c.GPIO.ButtonPin < 0 || c.GPIO.MotorPin < 0 {
			return fmt.Errorf("gpio pins must not be negative")
		}
		if c.GPIO.ButtonPin == c.GPIO.MotorPin {
			return fmt.Errorf("gpio.button_pin and gpio.motor_pin must differ")
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the zap logger described by c.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if c.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
