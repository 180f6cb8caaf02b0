package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for droidstage.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	ADB       ADBConfig       `yaml:"adb"`
	Detection DetectionConfig `yaml:"detection"`
	Worker    WorkerConfig    `yaml:"worker"`
	Stages    []StageConfig   `yaml:"stages"`
	Buttons   []ButtonConfig  `yaml:"buttons"`
	Fallbacks FallbackTable   `yaml:"fallbacks"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ADBConfig contains settings for the adb command-line transport.
type ADBConfig struct {
	// Binary is the adb executable name or path. Resolved via PATH lookup
	// when not absolute.
	Binary string `yaml:"binary"`

	// CommandTimeout bounds each adb invocation, in seconds.
	CommandTimeout int `yaml:"command_timeout"`
}

// DetectionConfig contains stage/button template matching settings.
type DetectionConfig struct {
	// TemplateDir is the root directory holding template images.
	// Template identifiers in stages/buttons resolve relative to it.
	TemplateDir string `yaml:"template_dir"`

	// MatchThreshold is the minimum correlation score for a match, in (0, 1].
	MatchThreshold float64 `yaml:"match_threshold"`

	// Scales are the template scale factors tried in order.
	Scales []float64 `yaml:"scales"`

	// RequiredMatches is how many template hits confirm a stage before
	// the detector stops scanning further stages.
	RequiredMatches int `yaml:"required_matches"`

	// DebugDir enables annotated screenshot dumps when non-empty.
	DebugDir string `yaml:"debug_dir"`
}

// WorkerConfig contains per-device worker loop settings.
type WorkerConfig struct {
	// Devices restricts the run to these serials. Empty means every
	// connected, authorized device.
	Devices []string `yaml:"devices"`

	// DryRun logs actions without sending them to devices.
	DryRun bool `yaml:"dry_run"`

	PollIntervalMS int `yaml:"poll_interval_ms"`
	RetryLimit     int `yaml:"retry_limit"`
	MaxWorkers     int `yaml:"max_workers"`
	JitterPx       int `yaml:"jitter_px"`
	DeviceTimeoutS int `yaml:"device_timeout_s"`
}

// StageConfig describes one recognizable application screen and the
// actions dispatched when it is detected. Stage order in the file is the
// detector's scan order.
type StageConfig struct {
	Name      string   `yaml:"name"`
	Templates []string `yaml:"templates"`
	Actions   []Action `yaml:"actions"`
}

// ButtonConfig describes a tappable on-screen element located by template
// matching. Templates are tried in order.
type ButtonConfig struct {
	Name      string   `yaml:"name"`
	Templates []string `yaml:"templates"`
}

// FallbackTable maps device serial -> button name -> static [x, y] tap
// coordinates, used when template matching cannot locate the button.
type FallbackTable map[string]map[string][]int

// Lookup returns the fallback coordinates for a device/button pair.
// The second return is false when no usable entry exists.
func (t FallbackTable) Lookup(serial, button string) ([]int, bool) {
	buttons, ok := t[serial]
	if !ok {
		return nil, false
	}
	coords, ok := buttons[button]
	if !ok || len(coords) < 2 {
		return nil, false
	}
	return coords, true
}

// APIConfig contains HTTP status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for run metrics.
type InfluxDBConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	Token           string `yaml:"token"`
	Org             string `yaml:"org"`
	Bucket          string `yaml:"bucket"`
	BatchSize       int    `yaml:"batch_size"`
	FlushIntervalMS int    `yaml:"flush_interval_ms"`
}

// MQTTConfig contains MQTT event publishing settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DROIDSTAGE_SECTION_KEY
// For example: DROIDSTAGE_ADB_BINARY, DROIDSTAGE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		ADB: ADBConfig{
			Binary:         "adb",
			CommandTimeout: 30,
		},
		Detection: DetectionConfig{
			TemplateDir:     "templates",
			MatchThreshold:  0.8,
			Scales:          []float64{1.0, 0.8, 1.2},
			RequiredMatches: 1,
		},
		Worker: WorkerConfig{
			PollIntervalMS: 1000,
			RetryLimit:     3,
			MaxWorkers:     4,
			JitterPx:       5,
			DeviceTimeoutS: 300,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8686,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			URL:             "http://localhost:8086",
			Org:             "droidstage",
			Bucket:          "runs",
			BatchSize:       50,
			FlushIntervalMS: 1000,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "droidstage",
			},
			QoS:         0,
			TopicPrefix: "droidstage",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DROIDSTAGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Logging
	if v := os.Getenv("DROIDSTAGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// ADB
	if v := os.Getenv("DROIDSTAGE_ADB_BINARY"); v != "" {
		cfg.ADB.Binary = v
	}

	// Detection
	if v := os.Getenv("DROIDSTAGE_TEMPLATE_DIR"); v != "" {
		cfg.Detection.TemplateDir = v
	}

	// API
	if v := os.Getenv("DROIDSTAGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DROIDSTAGE_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("DROIDSTAGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MQTT
	if v := os.Getenv("DROIDSTAGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DROIDSTAGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DROIDSTAGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported in a single error so a broken
// file can be fixed in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Detection validation
	if c.Detection.TemplateDir == "" {
		errs = append(errs, "detection.template_dir is required")
	}
	if c.Detection.MatchThreshold <= 0 || c.Detection.MatchThreshold > 1 {
		errs = append(errs, "detection.match_threshold must be in (0, 1]")
	}
	if len(c.Detection.Scales) == 0 {
		errs = append(errs, "detection.scales must list at least one scale factor")
	}
	for i, s := range c.Detection.Scales {
		if s <= 0 {
			errs = append(errs, fmt.Sprintf("detection.scales[%d] must be > 0", i))
		}
	}
	if c.Detection.RequiredMatches < 1 {
		errs = append(errs, "detection.required_matches must be >= 1")
	}

	// Worker validation
	if c.Worker.PollIntervalMS < 1 {
		errs = append(errs, "worker.poll_interval_ms must be >= 1")
	}
	if c.Worker.RetryLimit < 1 {
		errs = append(errs, "worker.retry_limit must be >= 1")
	}
	if c.Worker.MaxWorkers < 1 {
		errs = append(errs, "worker.max_workers must be >= 1")
	}
	if c.Worker.JitterPx < 0 {
		errs = append(errs, "worker.jitter_px must be >= 0")
	}
	if c.Worker.DeviceTimeoutS < 1 {
		errs = append(errs, "worker.device_timeout_s must be >= 1")
	}

	// ADB validation
	if c.ADB.Binary == "" {
		errs = append(errs, "adb.binary is required")
	}
	if c.ADB.CommandTimeout < 1 {
		errs = append(errs, "adb.command_timeout must be >= 1")
	}

	errs = append(errs, c.validateStages()...)
	errs = append(errs, c.validateFallbacks()...)

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateStages checks stage and button definitions, including that every
// tap action names a button resolvable via templates or a fallback entry.
func (c *Config) validateStages() []string {
	var errs []string

	buttonNames := make(map[string]struct{}, len(c.Buttons))
	for i, b := range c.Buttons {
		if b.Name == "" {
			errs = append(errs, fmt.Sprintf("buttons[%d].name is required", i))
			continue
		}
		if _, dup := buttonNames[b.Name]; dup {
			errs = append(errs, fmt.Sprintf("buttons[%d]: duplicate button name %q", i, b.Name))
		}
		buttonNames[b.Name] = struct{}{}
		if len(b.Templates) == 0 {
			errs = append(errs, fmt.Sprintf("button %q must list at least one template", b.Name))
		}
	}

	// Buttons known only through fallback coordinates are legitimate tap
	// targets even without templates.
	fallbackButtons := make(map[string]struct{})
	for _, perDevice := range c.Fallbacks {
		for name := range perDevice {
			fallbackButtons[name] = struct{}{}
		}
	}

	stageNames := make(map[string]struct{}, len(c.Stages))
	for i, s := range c.Stages {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("stages[%d].name is required", i))
			continue
		}
		if _, dup := stageNames[s.Name]; dup {
			errs = append(errs, fmt.Sprintf("stages[%d]: duplicate stage name %q", i, s.Name))
		}
		stageNames[s.Name] = struct{}{}
		if len(s.Templates) == 0 {
			errs = append(errs, fmt.Sprintf("stage %q must list at least one template", s.Name))
		}

		for j, a := range s.Actions {
			where := fmt.Sprintf("stage %q action %d", s.Name, j)
			switch a.Type {
			case ActionTap:
				if a.Button == "" {
					errs = append(errs, where+": tap requires a button name")
					break
				}
				_, known := buttonNames[a.Button]
				_, viaFallback := fallbackButtons[a.Button]
				if !known && !viaFallback {
					errs = append(errs, fmt.Sprintf("%s: button %q has no templates and no fallback coordinates", where, a.Button))
				}
			case ActionWait:
				if a.DurationMS <= 0 {
					errs = append(errs, where+": wait requires duration_ms > 0")
				}
			case ActionCommand:
				if a.Command == "" {
					errs = append(errs, where+": command must not be empty")
				}
			default:
				errs = append(errs, fmt.Sprintf("%s: unknown action type %q", where, a.Type))
			}
		}
	}

	return errs
}

// validateFallbacks checks the fallback coordinate table.
func (c *Config) validateFallbacks() []string {
	var errs []string
	for serial, perDevice := range c.Fallbacks {
		for button, coords := range perDevice {
			if len(coords) != 2 {
				errs = append(errs, fmt.Sprintf("fallbacks.%s.%s must have exactly two components [x, y]", serial, button))
				continue
			}
			if coords[0] < 0 || coords[1] < 0 {
				errs = append(errs, fmt.Sprintf("fallbacks.%s.%s coordinates must be >= 0", serial, button))
			}
		}
	}
	return errs
}

// GetPollInterval returns the worker poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalMS) * time.Millisecond
}

// GetDeviceTimeout returns the per-device run budget as a Duration.
func (c *Config) GetDeviceTimeout() time.Duration {
	return time.Duration(c.Worker.DeviceTimeoutS) * time.Second
}

// GetCommandTimeout returns the per-adb-invocation timeout as a Duration.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.ADB.CommandTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
