package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biorelay/relay/internal/frame"
)

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want 8765", cfg.Server.Port)
	}
	if !cfg.Source.UsePhysical {
		t.Error("Source.UsePhysical should default to true")
	}
	if cfg.Source.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %d, want 115200", cfg.Source.Serial.Baud)
	}
	if cfg.Simulator.DeviceID != 203333 || cfg.Simulator.Interval != 20*time.Millisecond {
		t.Errorf("Simulator = %+v", cfg.Simulator)
	}
	if len(cfg.Codec.TypeAliases) != 0 {
		t.Errorf("no type aliases expected by default, got %v", cfg.Codec.TypeAliases)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  max_subscribers: 16
  send_timeout: 500ms
source:
  use_physical: false
  serial:
    port: /dev/ttyACM0
simulator:
  interval: 10ms
  seed: 7
codec:
  type_aliases:
    pph: ppg
mqtt:
  broker: tcp://localhost:1883
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.MaxSubscribers != 16 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.SendTimeout != 500*time.Millisecond {
		t.Errorf("SendTimeout = %v", cfg.Server.SendTimeout)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Host = %q, want default to survive", cfg.Server.Host)
	}
	if cfg.Source.UsePhysical {
		t.Error("UsePhysical should be false")
	}
	if cfg.Source.Serial.Port != "/dev/ttyACM0" || cfg.Source.Serial.Baud != 115200 {
		t.Errorf("Serial = %+v", cfg.Source.Serial)
	}
	if cfg.Simulator.Interval != 10*time.Millisecond || cfg.Simulator.Seed != 7 {
		t.Errorf("Simulator = %+v", cfg.Simulator)
	}
	if cfg.MQTT.Topic != "biorelay/frames" {
		t.Errorf("MQTT.Topic = %q, want default", cfg.MQTT.Topic)
	}

	aliases := cfg.TypeAliases()
	if aliases["PPH"] != frame.PPG {
		t.Errorf("TypeAliases = %v", aliases)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissingDefaultPath(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load(DefaultPath)
	if err != nil {
		t.Fatalf("missing default config should not fail: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Port = %d", cfg.Server.Port)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(p, []byte("server: [unclosed"), 0644)
	if _, err := Load(p); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"negative subscribers", func(c *Config) { c.Server.MaxSubscribers = -1 }},
		{"zero baud", func(c *Config) { c.Source.Serial.Baud = 0 }},
		{"no serial port", func(c *Config) { c.Source.Serial.Port = "" }},
		{"zero interval", func(c *Config) { c.Simulator.Interval = 0 }},
		{"bad qos", func(c *Config) { c.MQTT.Broker = "tcp://x:1883"; c.MQTT.QoS = 3 }},
		{"bad alias", func(c *Config) { c.Codec.TypeAliases = map[string]string{"XYZ": "EEG"} }},
		{"replay while simulated", func(c *Config) { c.Source.ReplayFile = "capture.txt"; c.Source.UsePhysical = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateSkipsSerialWhenSimulated(t *testing.T) {
	cfg := defaultConfig()
	cfg.Source.UsePhysical = false
	cfg.Source.Serial.Baud = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("serial settings are irrelevant in simulated mode: %v", err)
	}
}

func TestValidateReplaySkipsSerial(t *testing.T) {
	cfg := defaultConfig()
	cfg.Source.ReplayFile = "capture.txt"
	cfg.Source.Serial.Port = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("replay does not need a serial port: %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RELAY_HOST", "0.0.0.0")
	t.Setenv("RELAY_PORT", "9999")
	t.Setenv("RELAY_SERIAL_PORT", "COM3")
	t.Setenv("RELAY_SERIAL_BAUD", "9600")
	t.Setenv("RELAY_USE_PHYSICAL", "false")
	t.Setenv("RELAY_MQTT_BROKER", "tcp://broker:1883")

	cfg := defaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 9999 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Source.Serial.Port != "COM3" || cfg.Source.Serial.Baud != 9600 {
		t.Errorf("Serial = %+v", cfg.Source.Serial)
	}
	if cfg.Source.UsePhysical {
		t.Error("UsePhysical should be false")
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("Broker = %q", cfg.MQTT.Broker)
	}
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Setenv("RELAY_PORT", "eighty")
	if err := defaultConfig().ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric RELAY_PORT")
	}
}

func TestLoadEnvFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	os.WriteFile(p, []byte("RELAY_SERIAL_PORT=/dev/ttyS9\n"), 0644)
	t.Setenv("RELAY_SERIAL_PORT", "")
	os.Unsetenv("RELAY_SERIAL_PORT")

	if err := LoadEnvFile(p); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("RELAY_SERIAL_PORT"); got != "/dev/ttyS9" {
		t.Errorf("RELAY_SERIAL_PORT = %q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored: %v", err)
	}
}
