package store

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/fabula/internal/observe"
	"github.com/MrWong99/fabula/pkg/story"
)

// suggestionThreshold is the minimum Jaro-Winkler similarity between a
// requested id and a known id before the store offers it as a suggestion.
const suggestionThreshold = 0.82

// Store is the story catalogue. It owns the registered-source list, the
// validated-story cache, and the in-flight load table that coalesces
// concurrent loads for the same source.
//
// Construct one Store at application start with [New] and pass it by
// reference to whatever owns playthroughs; there is no package-level
// instance. All exported methods are safe for concurrent use.
type Store struct {
	source  Source
	metrics *observe.Metrics

	mu       sync.Mutex
	flight   *singleflight.Group
	sources  []string            // registration order
	known    map[string]struct{} // registered refs, for idempotence
	cache    map[string]*story.Story
	byID     map[string]string // story id -> cached ref
	inFlight int
}

// Option configures a [Store].
type Option func(*Store)

// WithMetrics wires the store's load, cache, and validation instruments.
// Without it the store runs unmetered.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store that loads stories through src.
func New(src Source, opts ...Option) *Store {
	s := &Store{
		source: src,
		flight: new(singleflight.Group),
		known:  make(map[string]struct{}),
		cache:  make(map[string]*story.Story),
		byID:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveID returns the story id derived from a source reference: the base
// name with any .json extension removed. Used when a document carries no
// explicit id.
func DeriveID(ref string) string {
	base := path.Base(strings.ReplaceAll(ref, `\`, "/"))
	return strings.TrimSuffix(base, ".json")
}

// RegisterSource idempotently appends ref to the registered-source list.
// Registration order is preserved; it drives [Store.ListMetadata] order.
// No I/O happens here.
func (s *Store) RegisterSource(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(ref)
}

// RegisterSources registers each ref in order.
func (s *Store) RegisterSources(refs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.registerLocked(ref)
	}
}

func (s *Store) registerLocked(ref string) {
	if _, ok := s.known[ref]; ok {
		return
	}
	s.known[ref] = struct{}{}
	s.sources = append(s.sources, ref)
}

// Sources returns the registered source references in registration order.
func (s *Store) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

// Load resolves the story at ref: from the cache when already loaded,
// otherwise by fetching, parsing, and validating it. Concurrent loads for
// the same ref are coalesced — the fetch capability is invoked at most once
// and every waiter observes the same story or the same error. Failed loads
// are never cached.
//
// A coalesced load runs under the context of the caller that initiated it;
// late joiners share its cancellation.
func (s *Store) Load(ctx context.Context, ref string) (*story.Story, error) {
	s.mu.Lock()
	if st, ok := s.cache[ref]; ok {
		s.mu.Unlock()
		s.metrics.RecordCacheHit(ctx)
		return st, nil
	}
	flight := s.flight
	s.inFlight++
	s.mu.Unlock()

	v, err, _ := flight.Do(ref, func() (any, error) {
		return s.loadSlow(ctx, ref)
	})

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return v.(*story.Story), nil
}

// loadSlow performs the fetch → parse → validate → admit pipeline for one
// source reference. Runs at most once per ref at a time, under singleflight.
func (s *Store) loadSlow(ctx context.Context, ref string) (*story.Story, error) {
	start := time.Now()

	raw, err := s.source.Fetch(ctx, ref)
	if err != nil {
		s.metrics.RecordLoad(ctx, time.Since(start).Seconds(), false)
		return nil, err
	}

	st, err := story.Parse(raw)
	if err != nil {
		var perr *story.ParseError
		if errors.As(err, &perr) {
			perr.Ref = ref
		}
		s.metrics.RecordLoad(ctx, time.Since(start).Seconds(), false)
		return nil, err
	}

	if st.ID == "" {
		st.ID = DeriveID(ref)
	}
	st.Source = ref

	if err := st.Validate(); err != nil {
		var verr *story.ValidationError
		if errors.As(err, &verr) {
			verr.Ref = ref
			s.metrics.RecordValidationFailure(ctx, string(verr.Rule))
		}
		s.metrics.RecordLoad(ctx, time.Since(start).Seconds(), false)
		return nil, err
	}

	s.mu.Lock()
	s.cache[ref] = st
	s.byID[st.ID] = ref
	s.mu.Unlock()

	s.metrics.RecordLoad(ctx, time.Since(start).Seconds(), true)
	slog.Debug("story loaded", "ref", ref, "id", st.ID, "scenes", len(st.Scenes))

	// Advisory analysis for authors; never blocks the load.
	if rep := st.Analyze(); !rep.Clean() {
		slog.Warn("story has authoring issues",
			"ref", ref,
			"unreachable", rep.Unreachable,
			"dead_ends", rep.DeadEnds,
			"ending_reachable", rep.EndingReachable,
		)
	}

	return st, nil
}

// LoadByID resolves a story by id: from the cache first, then by loading
// the source the id names (<id>.json). When the id corresponds to no
// registered or loadable source, the error is a [*story.NotFoundError],
// with a nearest-match suggestion when a known id is close. Parse and
// validation failures on an existing source propagate as themselves.
func (s *Store) LoadByID(ctx context.Context, id string) (*story.Story, error) {
	if st, ok := s.GetCached(id); ok {
		return st, nil
	}

	ref := id + ".json"
	st, err := s.Load(ctx, ref)
	if err == nil {
		return st, nil
	}

	// An unfetchable, unregistered ref means the id is simply unknown.
	var terr *story.TransportError
	if errors.As(err, &terr) && !s.isRegistered(ref) {
		return nil, &story.NotFoundError{ID: id, Suggestion: s.suggest(id)}
	}
	return nil, err
}

// GetCached returns the cached story for id, looked up by document id or by
// source-derived id. Pure lookup: no I/O, no loading.
func (s *Store) GetCached(id string) (*story.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.byID[id]; ok {
		if st, ok := s.cache[ref]; ok {
			return st, true
		}
	}
	// Allow lookup by full source ref as well.
	if st, ok := s.cache[id]; ok {
		return st, true
	}
	return nil, false
}

// ListMetadata resolves every registered source in registration order and
// returns display metadata for each story that loads and validates.
// Per-source failures are logged and skipped so one broken story cannot
// hide the rest.
func (s *Store) ListMetadata(ctx context.Context) []story.Metadata {
	refs := s.Sources()

	metas := make([]story.Metadata, 0, len(refs))
	for _, ref := range refs {
		st, err := s.Load(ctx, ref)
		if err != nil {
			slog.Warn("skipping story", "ref", ref, "err", err)
			continue
		}
		metas = append(metas, st.Metadata())
	}
	return metas
}

// ClearCache drops all cached stories and in-flight load records. Later
// loads re-fetch and re-validate.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*story.Story)
	s.byID = make(map[string]string)
	// Fresh flight group: new loads never join a pre-clear fetch.
	s.flight = new(singleflight.Group)
}

// Invalidate drops the cached story for ref, if any, along with its id
// mapping and any in-flight load record. The next load re-fetches.
func (s *Store) Invalidate(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cache[ref]; ok {
		delete(s.cache, ref)
		delete(s.byID, st.ID)
	}
	s.flight.Forget(ref)
}

// ReplaceSources swaps the registered-source list for refs, preserving the
// given order. Cached stories stay cached; refs that disappear from the
// list are invalidated.
func (s *Store) ReplaceSources(refs ...string) {
	s.mu.Lock()
	old := s.sources
	s.sources = nil
	s.known = make(map[string]struct{})
	for _, ref := range refs {
		s.registerLocked(ref)
	}
	var dropped []string
	for _, ref := range old {
		if _, ok := s.known[ref]; !ok {
			dropped = append(dropped, ref)
		}
	}
	s.mu.Unlock()

	for _, ref := range dropped {
		s.Invalidate(ref)
	}
}

// DiscoverSources replaces the registered-source list with the backend's
// manifest. Returns whether discovery succeeded; on any failure the existing
// list is left untouched and no error escapes.
func (s *Store) DiscoverSources(ctx context.Context) bool {
	refs, err := s.source.Manifest(ctx)
	if err != nil {
		slog.Debug("source discovery failed; keeping registered list", "err", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = nil
	s.known = make(map[string]struct{})
	for _, ref := range refs {
		s.registerLocked(ref)
	}
	slog.Info("discovered story sources", "count", len(s.sources))
	return true
}

// Preload warms the cache for the given story ids. Failures are logged and
// skipped; the return value is the number of stories actually loaded.
func (s *Store) Preload(ctx context.Context, ids ...string) int {
	loaded := 0
	for _, id := range ids {
		if _, err := s.LoadByID(ctx, id); err != nil {
			slog.Warn("preload skipped", "id", id, "err", err)
			continue
		}
		loaded++
	}
	return loaded
}

// Stats is a point-in-time snapshot of store occupancy.
type Stats struct {
	// Registered is the number of registered source references.
	Registered int `json:"registered"`

	// Cached is the number of validated stories in the cache.
	Cached int `json:"cached"`

	// InFlight is the number of loads currently running or waiting on a
	// coalesced fetch.
	InFlight int `json:"inFlight"`
}

// Stats returns a snapshot of store occupancy.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Registered: len(s.sources),
		Cached:     len(s.cache),
		InFlight:   s.inFlight,
	}
}

// isRegistered reports whether ref is on the registered-source list.
func (s *Store) isRegistered(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.known[ref]
	return ok
}

// suggest returns the known story id most similar to id, or "" when nothing
// is close enough. Candidates are the ids derivable from registered sources
// plus the ids of cached stories.
func (s *Store) suggest(id string) string {
	s.mu.Lock()
	candidates := make([]string, 0, len(s.sources)+len(s.byID))
	for _, ref := range s.sources {
		candidates = append(candidates, DeriveID(ref))
	}
	for known := range s.byID {
		candidates = append(candidates, known)
	}
	s.mu.Unlock()

	best, bestScore := "", suggestionThreshold
	for _, cand := range candidates {
		if cand == id {
			continue
		}
		if score := matchr.JaroWinkler(id, cand, false); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}
