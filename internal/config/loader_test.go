package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/fabula/internal/config"
)

func TestLoadFromReader_Full(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
stories:
  backend: fs
  dir: /srv/stories
  sources:
    - jungle.json
    - castle.json
  watch: true
  preload:
    - jungle
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Stories.Dir != "/srv/stories" {
		t.Errorf("dir = %q, want /srv/stories", cfg.Stories.Dir)
	}
	if len(cfg.Stories.Sources) != 2 {
		t.Errorf("sources = %v, want 2 entries", cfg.Stories.Sources)
	}
	if !cfg.Stories.Watch {
		t.Error("watch should be true")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want default %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Stories.Backend != config.BackendFS {
		t.Errorf("backend = %q, want fs", cfg.Stories.Backend)
	}
	if cfg.Stories.Dir != config.DefaultStoriesDir {
		t.Errorf("dir = %q, want default %q", cfg.Stories.Dir, config.DefaultStoriesDir)
	}
}

func TestLoadFromReader_RejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listne_addr: ':1'\n"))
	if err == nil {
		t.Fatal("misspelled key should be rejected")
	}
}

func TestLoadFromReader_EnvOverrides(t *testing.T) {
	t.Setenv("FABULA_LISTEN_ADDR", ":7777")
	t.Setenv("FABULA_LOG_LEVEL", "warn")

	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  listen_addr: ':9090'\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":7777" {
		t.Errorf("listen_addr = %q, want env override :7777", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogWarn {
		t.Errorf("log_level = %q, want warn", cfg.Server.LogLevel)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want []string // substrings that must appear in the error
	}{
		{
			name: "bad log level",
			yaml: "server:\n  log_level: loud\n",
			want: []string{"server.log_level"},
		},
		{
			name: "bad backend",
			yaml: "stories:\n  backend: redis\n",
			want: []string{"stories.backend"},
		},
		{
			name: "http without base_url",
			yaml: "stories:\n  backend: http\n",
			want: []string{"stories.base_url"},
		},
		{
			name: "http with relative base_url",
			yaml: "stories:\n  backend: http\n  base_url: /stories\n",
			want: []string{"not an absolute URL"},
		},
		{
			name: "postgres without dsn",
			yaml: "stories:\n  backend: postgres\n",
			want: []string{"stories.postgres_dsn"},
		},
		{
			name: "watch on http backend",
			yaml: "stories:\n  backend: http\n  base_url: https://x.test\n  watch: true\n",
			want: []string{"stories.watch"},
		},
		{
			name: "empty source ref",
			yaml: "stories:\n  sources:\n    - ''\n",
			want: []string{"stories.sources[0]"},
		},
		{
			name: "tls without key",
			yaml: "server:\n  tls:\n    cert_file: /tmp/cert.pem\n",
			want: []string{"server.tls.key_file"},
		},
		{
			name: "multiple errors joined",
			yaml: "server:\n  log_level: loud\nstories:\n  backend: redis\n",
			want: []string{"server.log_level", "stories.backend"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error = %q, want substring %q", err.Error(), want)
				}
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabula.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen_addr: ':8088'\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8088" {
		t.Errorf("listen_addr = %q, want :8088", cfg.Server.ListenAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
