package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [Validate] when the corresponding field is empty.
const (
	DefaultListenAddr = ":8080"
	DefaultStoriesDir = "./stories"
)

// Load reads the YAML configuration file at path, applies FABULA_*
// environment overrides, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for empty fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file must be set when tls is configured"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file must be set when tls is configured"))
		}
	}

	// Stories
	if cfg.Stories.Backend == "" {
		cfg.Stories.Backend = BackendFS
	}
	switch {
	case !cfg.Stories.Backend.IsValid():
		errs = append(errs, fmt.Errorf("stories.backend %q is invalid; valid values: fs, http, postgres", cfg.Stories.Backend))
	case cfg.Stories.Backend == BackendFS:
		if cfg.Stories.Dir == "" {
			cfg.Stories.Dir = DefaultStoriesDir
		}
	case cfg.Stories.Backend == BackendHTTP:
		if cfg.Stories.BaseURL == "" {
			errs = append(errs, errors.New("stories.base_url must be set for the http backend"))
		} else if u, err := url.Parse(cfg.Stories.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("stories.base_url %q is not an absolute URL", cfg.Stories.BaseURL))
		}
	case cfg.Stories.Backend == BackendPostgres:
		if cfg.Stories.PostgresDSN == "" {
			errs = append(errs, errors.New("stories.postgres_dsn must be set for the postgres backend"))
		}
	}
	if cfg.Stories.Watch && cfg.Stories.Backend != BackendFS {
		errs = append(errs, fmt.Errorf("stories.watch is only supported for the fs backend, not %q", cfg.Stories.Backend))
	}
	for i, ref := range cfg.Stories.Sources {
		if ref == "" {
			errs = append(errs, fmt.Errorf("stories.sources[%d] must not be empty", i))
		}
	}
	for i, id := range cfg.Stories.Preload {
		if id == "" {
			errs = append(errs, fmt.Errorf("stories.preload[%d] must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
