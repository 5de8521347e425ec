package routeros

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TLSConfig controls whether and how a Connection dials over TLS.
type TLSConfig struct {
	Enabled        bool   `yaml:"enabled"`
	CABundle       string `yaml:"ca_bundle"`
	ClientCert     string `yaml:"client_cert"`
	ClientKey      string `yaml:"client_key"`
	VerifyHostname bool   `yaml:"verify_hostname"`
}

// Config holds everything needed to dial and maintain one RouterOS API
// connection, mirroring the connection-settings struct-of-settings shape
// used throughout this codebase's configuration surface.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	TLS TLSConfig `yaml:"tls"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	Keepalive      bool          `yaml:"keepalive"`
}

// defaultConfig returns a Config with every documented default applied,
// except Port: it is left at 0 ("unset") so LoadConfig can pick the
// plain/TLS default once TLS is known. An explicit port: 0 is treated the
// same as no port at all.
func defaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		Keepalive:      true,
		TLS: TLSConfig{
			VerifyHostname: true,
		},
	}
}

// LoadConfig reads a YAML configuration file and applies ROUTEROS_*
// environment variable overrides on top of it — the same env-overrides-file
// ordering this project's configuration loading has always used, just
// upgraded from hand-rolled .env parsing to a real YAML loader.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("routeros: reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("routeros: parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Port == 0 {
		if cfg.TLS.Enabled {
			cfg.Port = 8729
		} else {
			cfg.Port = 8728
		}
	}
	if cfg.Host == "" {
		return Config{}, fmt.Errorf("routeros: host is required")
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROUTEROS_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("ROUTEROS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("ROUTEROS_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("ROUTEROS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("ROUTEROS_TLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TLS.Enabled = b
		}
	}
}
