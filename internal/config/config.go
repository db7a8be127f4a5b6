package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/biorelay/relay/internal/frame"
)

// DefaultPath is the config file used when -config is not given. It may be
// absent.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Codec     CodecConfig     `yaml:"codec"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxSubscribers int           `yaml:"max_subscribers"`
	SendTimeout    time.Duration `yaml:"send_timeout"`
	QueueSize      int           `yaml:"queue_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type SourceConfig struct {
	UsePhysical bool          `yaml:"use_physical"`
	Serial      SerialConfig  `yaml:"serial"`
	ReplayFile  string        `yaml:"replay_file"`
	IdlePause   time.Duration `yaml:"idle_pause"`
}

type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type SimulatorConfig struct {
	DeviceID uint64        `yaml:"device_id"`
	Interval time.Duration `yaml:"interval"`
	Seed     int64         `yaml:"seed"`
}

// CodecConfig holds extra type spellings accepted on the wire, e.g.
// PPH: PPG for firmware that mislabels its pulse channel.
type CodecConfig struct {
	TypeAliases map[string]string `yaml:"type_aliases"`
}

// MQTTConfig enables the MQTT bridge when Broker is set.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// LoggingConfig enables a rotating log file when File is set.
type LoggingConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8765,
			SendTimeout:  2 * time.Second,
			QueueSize:    64,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Source: SourceConfig{
			UsePhysical: true,
			Serial: SerialConfig{
				Port:        "/dev/ttyUSB0",
				Baud:        115200,
				ReadTimeout: time.Second,
			},
			IdlePause: 10 * time.Millisecond,
		},
		Simulator: SimulatorConfig{
			DeviceID: 203333,
			Interval: 20 * time.Millisecond,
		},
		MQTT: MQTTConfig{
			Topic: "biorelay/frames",
		},
		Logging: LoggingConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads path over the defaults. A missing file at DefaultPath is not an
// error; any other missing path is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxSubscribers < 0 {
		return fmt.Errorf("server.max_subscribers must not be negative")
	}
	if c.Source.ReplayFile != "" && !c.Source.UsePhysical {
		return fmt.Errorf("source.replay_file %q needs use_physical; replay feeds the physical path", c.Source.ReplayFile)
	}
	if c.Source.UsePhysical && c.Source.ReplayFile == "" {
		if c.Source.Serial.Port == "" {
			return fmt.Errorf("source.serial.port is required when use_physical is set")
		}
		if c.Source.Serial.Baud <= 0 {
			return fmt.Errorf("source.serial.baud must be positive, got %d", c.Source.Serial.Baud)
		}
		if c.Source.Serial.ReadTimeout <= 0 {
			return fmt.Errorf("source.serial.read_timeout must be positive")
		}
	}
	if c.Simulator.Interval <= 0 {
		return fmt.Errorf("simulator.interval must be positive")
	}
	if c.MQTT.Broker != "" && c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if _, err := frame.NewCodec(frame.WithAliases(c.TypeAliases())); err != nil {
		return fmt.Errorf("codec.type_aliases: %w", err)
	}
	return nil
}

// TypeAliases returns the configured aliases keyed by upper-cased spelling.
func (c *Config) TypeAliases() map[string]frame.SignalType {
	out := make(map[string]frame.SignalType, len(c.Codec.TypeAliases))
	for alias, target := range c.Codec.TypeAliases {
		out[strings.ToUpper(strings.TrimSpace(alias))] = frame.SignalType(strings.ToUpper(strings.TrimSpace(target)))
	}
	return out
}
