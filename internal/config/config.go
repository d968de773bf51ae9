// Package config loads fingerspell settings from YAML with FINGERSPELL_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingerspell/internal/letter"
)

// Classifier modes.
const (
	ClassifierRemote   = "remote"
	ClassifierTemplate = "template"
	ClassifierMock     = "mock"
)

type HTTPConfig struct {
	Bind      string `yaml:"bind"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // text, json
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	Size     int `yaml:"size"`
	FPS      int `yaml:"fps"`
}

type SamplerConfig struct {
	PeriodMS  int  `yaml:"period_ms"`
	FPSWindow int  `yaml:"fps_window"`
	AutoStart bool `yaml:"auto_start"`
}

// Period returns the sampler tick period.
func (c SamplerConfig) Period() time.Duration {
	return time.Duration(c.PeriodMS) * time.Millisecond
}

type StabilizerConfig struct {
	DefaultThreshold int            `yaml:"default_threshold"`
	Thresholds       map[string]int `yaml:"thresholds"`
	SpaceLiteral     string         `yaml:"space_literal"`
}

// ThresholdSet builds the per-label hold thresholds.
func (c StabilizerConfig) ThresholdSet() (letter.Thresholds, error) {
	overrides := make(map[letter.Label]int, len(c.Thresholds))
	for name, n := range c.Thresholds {
		l, err := letter.Parse(name)
		if err != nil {
			return letter.Thresholds{}, fmt.Errorf("stabilizer.thresholds: %w", err)
		}
		if n <= 0 {
			return letter.Thresholds{}, fmt.Errorf("stabilizer.thresholds: %s must be positive", name)
		}
		overrides[l] = n
	}
	return letter.NewThresholds(c.DefaultThreshold, overrides), nil
}

type ClassifierConfig struct {
	Mode            string  `yaml:"mode"` // remote, template, mock
	Endpoint        string  `yaml:"endpoint"`
	TimeoutMS       int     `yaml:"timeout_ms"`
	InputSize       int     `yaml:"input_size"`
	Mirror          bool    `yaml:"mirror"`
	MediaPipeScript string  `yaml:"mediapipe_script"`
	PythonPath      string  `yaml:"python_path"`
	MinConfidence   float64 `yaml:"min_confidence"`
	// Script is the label sequence replayed in mock mode.
	Script []string `yaml:"script"`
}

// Timeout returns the per-call classifier timeout.
func (c ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type StoreConfig struct {
	// Path is the SQLite file. Empty uses ~/.fingerspell/fingerspell.db.
	Path string `yaml:"path"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	SubjectPrefix  string   `yaml:"subject_prefix"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
	// Embedded runs a NATS server in-process and connects to it instead of Servers.
	Embedded     bool `yaml:"embedded"`
	EmbeddedPort int  `yaml:"embedded_port"`
}

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

type PluginsConfig struct {
	Directory string `yaml:"directory"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Camera     CameraConfig     `yaml:"camera"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Stabilizer StabilizerConfig `yaml:"stabilizer"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Store      StoreConfig      `yaml:"store"`
	Bus        BusConfig        `yaml:"bus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Plugins    PluginsConfig    `yaml:"plugins"`
	Tray       TrayConfig       `yaml:"tray"`
}

func Default() Config {
	thresholds := make(map[string]int, len(letter.DefaultOverrides))
	for l, n := range letter.DefaultOverrides {
		thresholds[string(l)] = n
	}

	return Config{
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "fingerspell",
			LogLevel:       "info",
			LogFormat:      "text",
			MetricsEnabled: true,
			OTLPInsecure:   true,
		},
		Camera: CameraConfig{
			DeviceID: 0,
			Size:     224,
			FPS:      5,
		},
		Sampler: SamplerConfig{
			PeriodMS:  200,
			FPSWindow: 10,
			AutoStart: true,
		},
		Stabilizer: StabilizerConfig{
			DefaultThreshold: letter.DefaultThreshold,
			Thresholds:       thresholds,
			SpaceLiteral:     " ",
		},
		Classifier: ClassifierConfig{
			Mode:          ClassifierRemote,
			Endpoint:      "http://localhost:8000",
			TimeoutMS:     2000,
			InputSize:     224,
			Mirror:        true,
			MinConfidence: 0.5,
		},
		Bus: BusConfig{
			Servers:        []string{"nats://localhost:4222"},
			SubjectPrefix:  "fingerspell",
			ConnectTimeout: 2000,
			EmbeddedPort:   4222,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "fingerspell",
			TopicPrefix: "fingerspell",
			QoS:         1,
		},
		Plugins: PluginsConfig{
			TimeoutMS: 5000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.HTTP.Bind, "FINGERSPELL_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "FINGERSPELL_HTTP_PORT")
	overrideString(&cfg.HTTP.StaticDir, "FINGERSPELL_HTTP_STATIC_DIR")
	overrideString(&cfg.Telemetry.ServiceName, "FINGERSPELL_TELEMETRY_SERVICE_NAME")
	overrideString(&cfg.Telemetry.LogLevel, "FINGERSPELL_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFormat, "FINGERSPELL_TELEMETRY_LOG_FORMAT")
	overrideBool(&cfg.Telemetry.MetricsEnabled, "FINGERSPELL_TELEMETRY_METRICS_ENABLED")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "FINGERSPELL_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "FINGERSPELL_TELEMETRY_OTLP_INSECURE")
	overrideInt(&cfg.Camera.DeviceID, "FINGERSPELL_CAMERA_DEVICE_ID")
	overrideInt(&cfg.Camera.Size, "FINGERSPELL_CAMERA_SIZE")
	overrideInt(&cfg.Camera.FPS, "FINGERSPELL_CAMERA_FPS")
	overrideInt(&cfg.Sampler.PeriodMS, "FINGERSPELL_SAMPLER_PERIOD_MS")
	overrideInt(&cfg.Sampler.FPSWindow, "FINGERSPELL_SAMPLER_FPS_WINDOW")
	overrideBool(&cfg.Sampler.AutoStart, "FINGERSPELL_SAMPLER_AUTO_START")
	overrideInt(&cfg.Stabilizer.DefaultThreshold, "FINGERSPELL_STABILIZER_DEFAULT_THRESHOLD")
	overrideIntMap(&cfg.Stabilizer.Thresholds, "FINGERSPELL_STABILIZER_THRESHOLDS")
	overrideRawString(&cfg.Stabilizer.SpaceLiteral, "FINGERSPELL_STABILIZER_SPACE_LITERAL")
	overrideString(&cfg.Classifier.Mode, "FINGERSPELL_CLASSIFIER_MODE")
	overrideString(&cfg.Classifier.Endpoint, "FINGERSPELL_CLASSIFIER_ENDPOINT")
	overrideInt(&cfg.Classifier.TimeoutMS, "FINGERSPELL_CLASSIFIER_TIMEOUT_MS")
	overrideInt(&cfg.Classifier.InputSize, "FINGERSPELL_CLASSIFIER_INPUT_SIZE")
	overrideBool(&cfg.Classifier.Mirror, "FINGERSPELL_CLASSIFIER_MIRROR")
	overrideString(&cfg.Classifier.MediaPipeScript, "FINGERSPELL_CLASSIFIER_MEDIAPIPE_SCRIPT")
	overrideString(&cfg.Classifier.PythonPath, "FINGERSPELL_CLASSIFIER_PYTHON_PATH")
	overrideFloat(&cfg.Classifier.MinConfidence, "FINGERSPELL_CLASSIFIER_MIN_CONFIDENCE")
	overrideStringSlice(&cfg.Classifier.Script, "FINGERSPELL_CLASSIFIER_SCRIPT")
	overrideString(&cfg.Store.Path, "FINGERSPELL_STORE_PATH")
	overrideBool(&cfg.Bus.Enabled, "FINGERSPELL_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "FINGERSPELL_BUS_SERVERS")
	overrideString(&cfg.Bus.SubjectPrefix, "FINGERSPELL_BUS_SUBJECT_PREFIX")
	overrideString(&cfg.Bus.Username, "FINGERSPELL_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "FINGERSPELL_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "FINGERSPELL_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "FINGERSPELL_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.Bus.Embedded, "FINGERSPELL_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.EmbeddedPort, "FINGERSPELL_BUS_EMBEDDED_PORT")
	overrideBool(&cfg.MQTT.Enabled, "FINGERSPELL_MQTT_ENABLED")
	overrideString(&cfg.MQTT.Broker, "FINGERSPELL_MQTT_BROKER")
	overrideString(&cfg.MQTT.ClientID, "FINGERSPELL_MQTT_CLIENT_ID")
	overrideString(&cfg.MQTT.TopicPrefix, "FINGERSPELL_MQTT_TOPIC_PREFIX")
	overrideInt(&cfg.MQTT.QoS, "FINGERSPELL_MQTT_QOS")
	overrideString(&cfg.MQTT.Username, "FINGERSPELL_MQTT_USERNAME")
	overrideString(&cfg.MQTT.Password, "FINGERSPELL_MQTT_PASSWORD")
	overrideString(&cfg.Plugins.Directory, "FINGERSPELL_PLUGINS_DIRECTORY")
	overrideInt(&cfg.Plugins.TimeoutMS, "FINGERSPELL_PLUGINS_TIMEOUT_MS")
	overrideBool(&cfg.Tray.Enabled, "FINGERSPELL_TRAY_ENABLED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

// overrideRawString keeps whitespace-only values, which are meaningful for
// the space literal.
func overrideRawString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && value != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		var trimmed []string
		for _, p := range strings.Split(value, ",") {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// overrideIntMap parses "S:3,N:6". The whole value is ignored if any entry is
// malformed.
func overrideIntMap(target *map[string]int, envKey string) {
	value, ok := os.LookupEnv(envKey)
	if !ok || strings.TrimSpace(value) == "" {
		return
	}
	parsed := make(map[string]int)
	for _, p := range strings.Split(value, ",") {
		key, raw, found := strings.Cut(strings.TrimSpace(p), ":")
		if !found {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		parsed[strings.TrimSpace(key)] = n
	}
	*target = parsed
}

func validate(cfg Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if _, err := ParseLogLevel(cfg.Telemetry.LogLevel); err != nil {
		return err
	}
	switch cfg.Telemetry.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("telemetry.log_format must be text or json, got %q", cfg.Telemetry.LogFormat)
	}
	if cfg.Camera.Size <= 0 {
		return errors.New("camera.size must be positive")
	}
	if cfg.Sampler.PeriodMS <= 0 {
		return errors.New("sampler.period_ms must be positive")
	}
	if cfg.Sampler.FPSWindow <= 0 {
		return errors.New("sampler.fps_window must be positive")
	}
	if cfg.Stabilizer.DefaultThreshold <= 0 {
		return errors.New("stabilizer.default_threshold must be positive")
	}
	if _, err := cfg.Stabilizer.ThresholdSet(); err != nil {
		return err
	}
	switch cfg.Classifier.Mode {
	case ClassifierRemote:
		if cfg.Classifier.Endpoint == "" {
			return errors.New("classifier.endpoint is required in remote mode")
		}
	case ClassifierTemplate:
	case ClassifierMock:
		for _, name := range cfg.Classifier.Script {
			if _, err := letter.Parse(name); err != nil {
				return fmt.Errorf("classifier.script: %w", err)
			}
		}
	default:
		return fmt.Errorf("classifier.mode must be one of %s, got %q",
			strings.Join([]string{ClassifierRemote, ClassifierTemplate, ClassifierMock}, ", "), cfg.Classifier.Mode)
	}
	if cfg.Classifier.TimeoutMS <= 0 {
		return errors.New("classifier.timeout_ms must be positive")
	}
	if cfg.Bus.Enabled {
		if len(cfg.Bus.Servers) == 0 && !cfg.Bus.Embedded {
			return errors.New("bus.servers must not be empty when the bus is enabled")
		}
		if cfg.Bus.SubjectPrefix == "" {
			return errors.New("bus.subject_prefix must not be empty")
		}
	}
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return errors.New("mqtt.qos must be 0, 1 or 2")
		}
	}
	if cfg.Plugins.TimeoutMS <= 0 {
		return errors.New("plugins.timeout_ms must be positive")
	}
	return nil
}

// ParseLogLevel maps a config level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("telemetry.log_level: unknown level %q", level)
	}
}
