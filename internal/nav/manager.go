package nav

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/fabula/internal/observe"
	"github.com/MrWong99/fabula/internal/store"
	"github.com/MrWong99/fabula/pkg/story"
)

// ErrNoSession is returned by session operations when no story has been
// started yet.
var ErrNoSession = errors.New("nav: no active session")

// Manager ties a story store to a single live playthrough. It resolves
// stories by id, applies player choices by index, and reports session
// metrics. Safe for concurrent use.
//
// One manager holds one session at a time; starting a story replaces
// whatever was being played before.
type Manager struct {
	store   *store.Store
	metrics *observe.Metrics

	mu     sync.Mutex
	engine *Engine
}

// ManagerOption configures a [Manager].
type ManagerOption func(*Manager)

// WithManagerMetrics sets the metrics sink for session instrumentation.
func WithManagerMetrics(m *observe.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// NewManager creates a session manager on top of st.
func NewManager(st *store.Store, opts ...ManagerOption) *Manager {
	mgr := &Manager{store: st}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// StartStory loads the story with the given id and starts a fresh
// playthrough of it, replacing any session in progress. Load, parse,
// validation and not-found errors propagate from the store as themselves.
func (m *Manager) StartStory(ctx context.Context, id string) (State, error) {
	st, err := m.store.LoadByID(ctx, id)
	if err != nil {
		return State{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	eng := NewEngine()
	if err := eng.Start(st); err != nil {
		return State{}, err
	}
	if m.engine == nil {
		m.metrics.AddActiveSessions(ctx, 1)
	}
	m.engine = eng
	m.metrics.RecordSessionStarted(ctx, st.ID)
	observe.Logger(ctx).Info("story started", "story", st.ID, "title", st.Title)
	return eng.State(), nil
}

// Choose applies the choice at index on the current scene. The index refers
// to the scene's choice list in document order. On an ending scene, or with
// an index outside the list, the session is left unchanged.
func (m *Manager) Choose(ctx context.Context, index int) (State, error) {
	eng, err := m.session()
	if err != nil {
		return State{}, err
	}

	sc, ok := eng.CurrentScene()
	if !ok {
		return State{}, ErrNoSession
	}
	if sc.IsEnding {
		return State{}, fmt.Errorf("nav: scene is an ending, no choices to make")
	}
	if index < 0 || index >= len(sc.Choices) {
		return State{}, fmt.Errorf("nav: choice index %d out of range [0, %d)", index, len(sc.Choices))
	}

	ch := sc.Choices[index]
	if err := eng.Choose(ch); err != nil {
		return State{}, err
	}

	state := eng.State()
	next, _ := eng.CurrentScene()
	m.metrics.RecordTransition(ctx, string(next.EndingType), state.Terminal)
	if state.Terminal {
		observe.Logger(ctx).Info("ending reached", "story", state.StoryID,
			"scene", state.CurrentScene, "type", next.EndingType, "scenes_visited", state.SceneNumber)
	}
	return state, nil
}

// GoTo jumps the session straight to sceneID without touching the scene
// counter. Meant for debugging and content review, not regular play.
func (m *Manager) GoTo(ctx context.Context, sceneID string) (State, error) {
	eng, err := m.session()
	if err != nil {
		return State{}, err
	}
	if err := eng.GoTo(sceneID); err != nil {
		return State{}, err
	}
	state := eng.State()
	sc, _ := eng.CurrentScene()
	m.metrics.RecordTransition(ctx, string(sc.EndingType), state.Terminal)
	return state, nil
}

// Restart begins the current story again from its start scene.
func (m *Manager) Restart(ctx context.Context) (State, error) {
	eng, err := m.session()
	if err != nil {
		return State{}, err
	}
	eng.Restart()
	state := eng.State()
	m.metrics.RecordSessionStarted(ctx, state.StoryID)
	observe.Logger(ctx).Info("story restarted", "story", state.StoryID)
	return state, nil
}

// Snapshot returns the current session state without modifying it.
func (m *Manager) Snapshot() (State, error) {
	eng, err := m.session()
	if err != nil {
		return State{}, err
	}
	return eng.State(), nil
}

// Scene returns the scene the session is currently on.
func (m *Manager) Scene() (story.Scene, error) {
	eng, err := m.session()
	if err != nil {
		return story.Scene{}, err
	}
	sc, ok := eng.CurrentScene()
	if !ok {
		return story.Scene{}, ErrNoSession
	}
	return sc, nil
}

// Abandon discards the current session, if any. The backing story stays
// cached in the store.
func (m *Manager) Abandon(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return
	}
	m.engine = nil
	m.metrics.AddActiveSessions(ctx, -1)
}

func (m *Manager) session() (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine == nil {
		return nil, ErrNoSession
	}
	return m.engine, nil
}
