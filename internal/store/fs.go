package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MrWong99/fabula/pkg/story"
)

// DirSource serves story documents from files under a single directory.
// A ref is a bare filename such as "jungle.json"; the directory's
// index.json, when present, acts as the manifest.
type DirSource struct {
	dir string
}

// Compile-time interface check.
var _ Source = (*DirSource)(nil)

// NewDirSource creates a story source rooted at dir. The directory does not
// have to exist yet; fetches against a missing directory fail with a
// transport error like any other unreadable file.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Fetch reads the story file named by ref. Refs must be bare filenames;
// anything that would escape the directory is rejected.
func (d *DirSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	if !validRef(ref) {
		return nil, &story.TransportError{Ref: ref, Err: fmt.Errorf("invalid source reference")}
	}
	raw, err := os.ReadFile(filepath.Join(d.dir, ref))
	if err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	return raw, nil
}

// Manifest reads and parses the directory's index.json.
func (d *DirSource) Manifest(ctx context.Context) ([]string, error) {
	raw, err := d.Fetch(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	return parseManifest(raw)
}

// validRef reports whether ref is a bare filename that stays inside the
// source directory.
func validRef(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}
	if strings.ContainsAny(ref, `/\`) {
		return false
	}
	return true
}
