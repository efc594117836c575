// Package config loads bridge settings from an optional YAML file and
// layers CLI flags on top, grounded on the teacher's internal/config
// package (a struct populated from disk then overridden by flags) but
// rebuilt for the bridge's own settings rather than wingthing's agent
// configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the bridge's full runtime configuration.
type Config struct {
	// ServerPort is the TCP port client sessions connect to.
	ServerPort int `yaml:"server_port"`

	// Discovery enables the UDP broadcast responder that lets clients
	// on the same subnet find this bridge without a hardcoded address.
	Discovery     bool `yaml:"discovery"`
	DiscoveryPort int  `yaml:"discovery_port"`

	// PodMode serves more than one manikin from a single process.
	PodMode   bool     `yaml:"pod_mode"`
	ManikinID string   `yaml:"manikin_id"`
	Manikins  []string `yaml:"manikins"`

	// CoreID namespaces this bridge's topics on a shared bus.
	CoreID string `yaml:"core_id"`

	// MQTT holds the transport's broker settings. Left zero-valued,
	// the bridge runs against the in-process transport instead.
	MQTT MQTTConfig `yaml:"mqtt"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// MQTTConfig configures the paho.golang-backed bus transport.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// Default returns the bridge's out-of-the-box configuration.
func Default() Config {
	return Config{
		ServerPort:    4000,
		Discovery:     true,
		DiscoveryPort: 4001,
		PodMode:       false,
		ManikinID:     "default",
		CoreID:        "amm",
		LogLevel:      "info",
	}
}

// Load reads path (if non-empty and present) as YAML over Default. A
// missing file is not an error — the bridge falls back to defaults and
// CLI flags — but a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
