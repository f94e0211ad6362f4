package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the node's on-disk configuration, stored as config.yaml under
// its home directory.
type Config struct {
	// Home is the node's data directory; GenesisPath, priv_validator_state.json,
	// and the storage engine's own files are all relative to it unless
	// given as absolute paths.
	Home string `yaml:"home"`

	// ABCIListenAddr is the address cometbft connects to as the ABCI
	// application.
	ABCIListenAddr string `yaml:"abci_listen_addr"`

	// QueryListenAddr is the Query RPC gRPC server's listen address.
	QueryListenAddr string `yaml:"query_listen_addr"`

	// MetricsListenAddr serves the Prometheus /metrics endpoint.
	MetricsListenAddr string `yaml:"metrics_listen_addr"`

	// GenesisPath is relative to Home unless absolute.
	GenesisPath string `yaml:"genesis_path"`

	// AppVersion records the compiled-in app version of the binary that
	// wrote this config ("appd init"). The App-Version Gate at startup
	// checks the running binary's own compiled-in version, not this field.
	AppVersion uint64 `yaml:"app_version"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns a Config with the conventional layout under home.
func Default(home string) Config {
	return Config{
		Home:              home,
		ABCIListenAddr:    "tcp://0.0.0.0:26658",
		QueryListenAddr:   "0.0.0.0:9090",
		MetricsListenAddr: "0.0.0.0:9091",
		GenesisPath:       "genesis.json",
		AppVersion:        1,
		LogLevel:          "info",
		LogJSON:           false,
	}
}

// Load reads and parses a config.yaml from path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating its parent directory if
// necessary.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// ResolvePath joins a possibly-relative path (e.g. GenesisPath) against
// Home; an absolute path is returned unchanged.
func (c Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}
