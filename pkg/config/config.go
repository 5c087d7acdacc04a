// Package config loads the daemon configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/uartlog/uartlog/pkg/serialio"
)

// Config is the daemon configuration.
type Config struct {
	// Line is the serial line being logged.
	Line serialio.Config `yaml:"line"`
	// Console is the optional primary serial console.
	Console serialio.Config `yaml:"console"`
	// Listen is the TCP console listen address, empty to disable.
	Listen string `yaml:"listen"`
	// ListenWS is the websocket console listen address, empty to
	// disable.
	ListenWS string `yaml:"listen_ws"`
	// Storage configures the log volume.
	Storage StorageConfig `yaml:"storage"`
	// MQTT configures the optional remote tap publisher.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// StorageConfig configures the log volume.
type StorageConfig struct {
	// Dir is the directory standing in for the card volume.
	Dir string `yaml:"dir"`
	// File is the log file name within Dir.
	File string `yaml:"file"`
	// AutoMount mounts the volume at startup.
	AutoMount bool `yaml:"auto_mount"`
}

// MQTTConfig configures the remote tap publisher.
type MQTTConfig struct {
	// BrokerURL is the broker to publish to, empty to disable.
	BrokerURL string `yaml:"broker_url"`
	// TopicPrefix prefixes the published topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Line:    serialio.Config{Device: "/dev/ttyUSB0"},
		Listen:  ":2323",
		Storage: StorageConfig{Dir: ".", File: "uart_log.txt", AutoMount: true},
		MQTT:    MQTTConfig{TopicPrefix: "uartlog"},
	}
}

// Load reads the yaml config at path, applied over Default. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
