package config_test

import (
	"testing"

	"github.com/MrWong99/fabula/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Stories: config.StoriesConfig{
			Backend: config.BackendFS,
			Sources: []string{"a.json", "b.json"},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(baseConfig(), baseConfig())
	if d.Any() {
		t.Errorf("identical configs should produce an empty diff: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(baseConfig(), new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level change to debug", d)
	}
}

func TestDiff_Sources(t *testing.T) {
	t.Parallel()
	new := baseConfig()
	new.Stories.Sources = []string{"b.json", "c.json"}

	d := config.Diff(baseConfig(), new)
	if !d.SourcesChanged {
		t.Fatal("sources change not detected")
	}
	if len(d.AddedSources) != 1 || d.AddedSources[0] != "c.json" {
		t.Errorf("added = %v, want [c.json]", d.AddedSources)
	}
	if len(d.RemovedSources) != 1 || d.RemovedSources[0] != "a.json" {
		t.Errorf("removed = %v, want [a.json]", d.RemovedSources)
	}
}

func TestDiff_Watch(t *testing.T) {
	t.Parallel()
	new := baseConfig()
	new.Stories.Watch = true

	d := config.Diff(baseConfig(), new)
	if !d.WatchChanged || !d.NewWatch {
		t.Errorf("diff = %+v, want watch enabled", d)
	}
}
