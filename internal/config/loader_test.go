package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Gesture.Window())
	assert.Equal(t, 500*time.Millisecond, cfg.Gesture.LongPress())
	assert.True(t, cfg.Chime.Enabled)
	assert.Equal(t, time.Minute, cfg.Chime.PollInterval())
	assert.Equal(t, BackendMQTT, cfg.Feedback.Backend)
	assert.Equal(t, "en-US", cfg.Feedback.Language)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "assist", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10.0, cfg.MQTT.InputRate)
	assert.Equal(t, 5, cfg.MQTT.InputBurst)
	assert.Equal(t, 15*time.Minute, cfg.MQTT.Heartbeat())
	assert.False(t, cfg.GPIO.Enabled)
	assert.Equal(t, 17, cfg.GPIO.ButtonPin)
	assert.Equal(t, 10*time.Millisecond, cfg.GPIO.Debounce())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gesture:
  window_ms: 350
chime:
  enabled: false
feedback:
  backend: Console
mqtt:
  topic_prefix: home/hall
gpio:
  enabled: true
  button_pin: 27
  motor_pin: 22
journal:
  path: /var/lib/tapassist/journal.db
log:
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(350), cfg.Gesture.WindowMs)
	assert.Equal(t, int64(500), cfg.Gesture.LongPressMs, "unset keys keep defaults")
	assert.False(t, cfg.Chime.Enabled)
	assert.Equal(t, BackendConsole, cfg.Feedback.Backend)
	assert.Equal(t, "home/hall", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.GPIO.Enabled)
	assert.Equal(t, 27, cfg.GPIO.ButtonPin)
	assert.Equal(t, 22, cfg.GPIO.MotorPin)
	assert.Equal(t, "/var/lib/tapassist/journal.db", cfg.Journal.Path)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://file:1883
`)
	t.Setenv("TAPASSIST_MQTT_BROKER", "tcp://env:1883")
	t.Setenv("TAPASSIST_MQTT_CLIENT_ID", "hall-panel")
	t.Setenv("TAPASSIST_GESTURE_WINDOW_MS", "400")
	t.Setenv("TAPASSIST_CHIME_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
	assert.Equal(t, "hall-panel", cfg.MQTT.ClientID)
	assert.Equal(t, int64(400), cfg.Gesture.WindowMs)
	assert.False(t, cfg.Chime.Enabled)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"TAPASSIST_MQTT_BROKER":           "mqtt.broker",
		"TAPASSIST_GESTURE_LONG_PRESS_MS": "gesture.long_press_ms",
		"TAPASSIST_LOG_LEVEL":             "log.level",
		"TAPASSIST_VERBOSE":               "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gesture: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero window", func(c *Config) { c.Gesture.WindowMs = 0 }, "gesture.window_ms"},
		{"negative long press", func(c *Config) { c.Gesture.LongPressMs = -1 }, "gesture.long_press_ms"},
		{"poll too fast", func(c *Config) { c.Chime.PollIntervalMs = 10 }, "chime.poll_interval_ms"},
		{"poll skips minutes", func(c *Config) { c.Chime.PollIntervalMs = 120000 }, "chime.poll_interval_ms"},
		{"unknown backend", func(c *Config) { c.Feedback.Backend = "bluetooth" }, "feedback.backend"},
		{"mqtt without broker", func(c *Config) { c.MQTT.Broker = "" }, "mqtt.broker"},
		{"zero burst", func(c *Config) { c.MQTT.InputBurst = 0 }, "mqtt.input_burst"},
		{"negative heartbeat", func(c *Config) { c.MQTT.HeartbeatMs = -1 }, "mqtt.heartbeat_ms"},
		{"same pins", func(c *Config) { c.GPIO.Enabled = true; c.GPIO.MotorPin = c.GPIO.ButtonPin }, "must differ"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestValidateConsoleNeedsNoBroker(t *testing.T) {
	cfg, err := Load(writeConfig(t, "feedback:\n  backend: console\nmqtt:\n  broker: \"\"\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestEffective(t *testing.T) {
	t.Setenv("TAPASSIST_HTTP_ADDR", ":9000")

	out, err := Effective(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.Contains(s, "level: debug"), s)
	assert.True(t, strings.Contains(s, ":9000"), s)
	assert.True(t, strings.Contains(s, "window_ms: 500"), s)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug disabled at warn")
	assert.True(t, logger.Core().Enabled(1), "warn enabled")

	_, err = NewLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}
