package store

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/MrWong99/fabula/pkg/story"
)

// maxDocumentSize bounds how much of a response body a fetch will read.
// Story documents are hand-authored JSON; anything past this is not one.
const maxDocumentSize = 4 << 20

// HTTPSource serves story documents from a remote base URL. A ref is
// resolved as <base>/<ref>; the manifest is <base>/index.json.
type HTTPSource struct {
	base    string
	client  *http.Client
	breaker *Breaker
}

// Compile-time interface check.
var _ Source = (*HTTPSource)(nil)

// HTTPOption configures an [HTTPSource].
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets the HTTP client used for fetches. The default is
// [http.DefaultClient]; transport-level timeouts belong on this client, not
// in the store.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithBreaker guards fetches with a circuit breaker. While the breaker is
// open, Fetch fails fast with a [*story.TransportError] wrapping
// [ErrBreakerOpen] instead of hitting the remote.
func WithBreaker(b *Breaker) HTTPOption {
	return func(s *HTTPSource) {
		s.breaker = b
	}
}

// NewHTTPSource creates a story source that fetches documents relative to
// base, e.g. "https://example.org/stories".
func NewHTTPSource(base string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		base:   strings.TrimSuffix(base, "/"),
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch performs a GET for the document named by ref. A non-2xx status or a
// transport failure yields a [*story.TransportError] carrying the status so
// the caller can decide whether a retry is worthwhile.
func (s *HTTPSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if s.breaker == nil {
		return s.fetch(ctx, ref)
	}
	var raw []byte
	err := s.breaker.Do(func() error {
		var ferr error
		raw, ferr = s.fetch(ctx, ref)
		return ferr
	})
	if errors.Is(err, ErrBreakerOpen) {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	return raw, err
}

func (s *HTTPSource) fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/"+ref, nil)
	if err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &story.TransportError{Ref: ref, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, &story.TransportError{Ref: ref, Err: err}
	}
	return raw, nil
}

// Manifest fetches and parses <base>/index.json.
func (s *HTTPSource) Manifest(ctx context.Context) ([]string, error) {
	raw, err := s.Fetch(ctx, ManifestName)
	if err != nil {
		return nil, err
	}
	return parseManifest(raw)
}
