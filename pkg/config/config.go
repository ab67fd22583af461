// Package config holds the coordinator's configuration: an embedded base
// config, optionally overlaid with a YAML file and MIDENMULTISIG_-prefixed
// environment variables.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
// Nested keys are separated with a double underscore, e.g.
// MIDENMULTISIG_APP__LISTEN overrides app.listen.
const EnvPrefix = "MIDENMULTISIG_"

//go:embed config.yml
var baseConfig []byte

// Version is the version of the coordinator, set at build time.
var Version string

// Config is the top level coordinator configuration.
type Config struct {
	App        App          `yaml:"app"`
	DB         DB           `yaml:"db"`
	Miden      Miden        `yaml:"miden"`
	Prometheus BasicService `yaml:"prometheus"`
	Pprof      BasicService `yaml:"pprof"`
}

// App configures the HTTP API surface.
type App struct {
	// Listen is the address:port the API server binds to.
	Listen string `yaml:"listen"`
	// NetworkIDHRP is the bech32 prefix of every address handled by this
	// coordinator.
	NetworkIDHRP string `yaml:"network_id_hrp"`
	// CORSAllowedOrigins enables CORS handling when non-empty; ["*"]
	// allows any origin.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// DB configures the PostgreSQL store.
type DB struct {
	DBURL   string `yaml:"db_url"`
	MaxConn uint32 `yaml:"max_conn"`
}

// Miden configures the embedded wallet client.
type Miden struct {
	NodeURL      string   `yaml:"node_url"`
	StorePath    string   `yaml:"store_path"`
	KeystorePath string   `yaml:"keystore_path"`
	Timeout      Duration `yaml:"timeout"`
}

// Duration is a time.Duration unmarshaling from "300ms"-style strings.
type Duration time.Duration

// Duration converts to the stdlib representation.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String implements the stringer interface.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// Load returns the embedded base config overlaid with the YAML file at the
// given path (skipped when path is empty) and with environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(baseConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse base config: %w", err)
	}
	if path != "" {
		configData, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("unable to read config: %w", err)
		}
		if err := yaml.Unmarshal(configData, &cfg); err != nil {
			return cfg, fmt.Errorf("unable to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv overrides config keys from the environment. The lookup function
// is injectable for tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for key, set := range map[string]func(string) error{
		"APP__LISTEN":         func(v string) error { c.App.Listen = v; return nil },
		"APP__NETWORK_ID_HRP": func(v string) error { c.App.NetworkIDHRP = v; return nil },
		"APP__CORS_ALLOWED_ORIGINS": func(v string) error {
			c.App.CORSAllowedOrigins = splitList(v)
			return nil
		},
		"DB__DB_URL": func(v string) error { c.DB.DBURL = v; return nil },
		"DB__MAX_CONN": func(v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			c.DB.MaxConn = uint32(n)
			return nil
		},
		"MIDEN__NODE_URL":      func(v string) error { c.Miden.NodeURL = v; return nil },
		"MIDEN__STORE_PATH":    func(v string) error { c.Miden.StorePath = v; return nil },
		"MIDEN__KEYSTORE_PATH": func(v string) error { c.Miden.KeystorePath = v; return nil },
		"MIDEN__TIMEOUT":       func(v string) error { return c.Miden.Timeout.UnmarshalText([]byte(v)) },
	} {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(v); err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, key, v, err)
		}
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the config is complete enough to start the
// coordinator.
func (c Config) Validate() error {
	if c.App.Listen == "" {
		return fmt.Errorf("app.listen is empty")
	}
	if c.App.NetworkIDHRP == "" {
		return fmt.Errorf("app.network_id_hrp is empty")
	}
	if c.DB.DBURL == "" {
		return fmt.Errorf("db.db_url is empty")
	}
	if c.DB.MaxConn == 0 {
		return fmt.Errorf("db.max_conn must be positive")
	}
	if c.Miden.NodeURL == "" {
		return fmt.Errorf("miden.node_url is empty")
	}
	return nil
}
