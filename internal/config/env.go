package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone and a missing file is ignored.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from RELAY_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("RELAY_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("RELAY_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RELAY_PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v := os.Getenv("RELAY_SERIAL_PORT"); v != "" {
		c.Source.Serial.Port = v
	}
	if v := os.Getenv("RELAY_SERIAL_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RELAY_SERIAL_BAUD: %w", err)
		}
		c.Source.Serial.Baud = n
	}
	if v := os.Getenv("RELAY_USE_PHYSICAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RELAY_USE_PHYSICAL: %w", err)
		}
		c.Source.UsePhysical = b
	}
	if v := os.Getenv("RELAY_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	return nil
}
