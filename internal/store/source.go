// Package store implements the story catalogue: registration of story
// sources, on-demand loading with coalescing of concurrent requests, an
// id-keyed cache, and graph validation before a story is admitted.
//
// The [Store] is deliberately decoupled from story transport. It fetches raw
// documents through the injected [Source] capability; [DirSource],
// [HTTPSource], and [PostgresSource] are the shipped implementations. Stories
// that pass validation are cached for the lifetime of the process (or until
// [Store.ClearCache] / [Store.Invalidate]) and shared read-only across any
// number of playthroughs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Source is the injected fetch capability the store loads stories through.
// Implementations must be safe for concurrent use.
type Source interface {
	// Fetch returns the raw story document for ref. Failures are reported as
	// a [*story.TransportError] so callers can tell transport problems apart
	// from malformed or invalid documents.
	Fetch(ctx context.Context, ref string) ([]byte, error)

	// Manifest returns the source references listed by the backend's
	// manifest, in manifest order. Backends without a manifest return an
	// error; [Store.DiscoverSources] treats any failure as non-fatal.
	Manifest(ctx context.Context) ([]string, error)
}

// ManifestName is the well-known manifest document name for file and HTTP
// backed sources.
const ManifestName = "index.json"

// parseManifest decodes the manifest document shape {"stories": [ref, ...]}.
// The stories key must be present and an array; an empty array is valid.
func parseManifest(raw []byte) ([]string, error) {
	// Pointer distinguishes an absent stories key from an empty list.
	var doc struct {
		Stories *[]string `json:"stories"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store: parse manifest: %w", err)
	}
	if doc.Stories == nil {
		return nil, fmt.Errorf("store: manifest has no stories list")
	}
	return *doc.Stories, nil
}
