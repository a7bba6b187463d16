package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; a backend or
// listen address change needs a restart and is not reported here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SourcesChanged is true when the registered story source list differs.
	SourcesChanged bool
	AddedSources   []string
	RemovedSources []string

	WatchChanged bool
	NewWatch     bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.SourcesChanged || d.WatchChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldRefs := make(map[string]bool, len(old.Stories.Sources))
	for _, ref := range old.Stories.Sources {
		oldRefs[ref] = true
	}
	newRefs := make(map[string]bool, len(new.Stories.Sources))
	for _, ref := range new.Stories.Sources {
		newRefs[ref] = true
	}
	for _, ref := range new.Stories.Sources {
		if !oldRefs[ref] {
			d.AddedSources = append(d.AddedSources, ref)
		}
	}
	for _, ref := range old.Stories.Sources {
		if !newRefs[ref] {
			d.RemovedSources = append(d.RemovedSources, ref)
		}
	}
	d.SourcesChanged = len(d.AddedSources) > 0 || len(d.RemovedSources) > 0

	if old.Stories.Watch != new.Stories.Watch {
		d.WatchChanged = true
		d.NewWatch = new.Stories.Watch
	}

	return d
}
