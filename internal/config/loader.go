package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment overrides.
	EnvPrefix = "TAPASSIST_"

	// DefaultPath is read when no config file is given and it exists.
	DefaultPath = "/etc/tapassist/config.yaml"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// defaultYAML is loaded first so booleans that default to true survive an
// omitted key.
const defaultYAML = `
gesture:
  window_ms: 500
  long_press_ms: 500
chime:
  enabled: true
  poll_interval_ms: 60000
feedback:
  backend: mqtt
  language: en-US
mqtt:
  broker: tcp://localhost:1883
  client_id: tapassist
  topic_prefix: assist
  input_rate: 10
  input_burst: 5
  heartbeat_ms: 900000
gpio:
  enabled: false
  chip: gpiochip0
  button_pin: 17
  motor_pin: 0
  debounce_ms: 10
http:
  addr: ":8080"
journal:
  path: ""
log:
  level: info
  format: json
`

// Load reads configuration from path (YAML), then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TAPASSIST_MQTT_BROKER, TAPASSIST_GESTURE_WINDOW_MS, ...)
//  2. YAML config file
//  3. Built-in defaults
//
// An empty path reads DefaultPath if it exists. An explicit path must exist.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates section from
// field:
//
//	TAPASSIST_MQTT_BROKER      -> mqtt.broker
//	TAPASSIST_GESTURE_WINDOW_MS -> gesture.window_ms
//	TAPASSIST_LOG_LEVEL        -> log.level
func Load(path string) (*Config, error) {
	k, err := loadKoanf(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Effective renders the merged configuration (defaults, file, environment)
// as YAML.
func Effective(path string) ([]byte, error) {
	k, err := loadKoanf(path)
	if err != nil {
		return nil, err
	}
	out, err := k.Marshal(yaml.Parser())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

func loadKoanf(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaultYAML)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	// Override with environment variables
	// Example: TAPASSIST_MQTT_BROKER -> mqtt.broker
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return k, nil
}

// envKey maps TAPASSIST_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// applyDefaults fills fields an explicit zero would leave unusable.
func applyDefaults(cfg *Config) {
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "tapassist"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "assist"
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
	if cfg.Feedback.Language == "" {
		cfg.Feedback.Language = "en-US"
	}
	cfg.Feedback.Backend = strings.ToLower(cfg.Feedback.Backend)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}
