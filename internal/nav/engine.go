// Package nav implements the playthrough state machine: the current scene
// pointer, the append-only visit history, the scene counter, and the
// transition rules that move a player through a story graph.
package nav

import (
	"sync"

	"github.com/MrWong99/fabula/pkg/story"
)

// State is a read-only snapshot of a playthrough, safe to hand to renderers
// and debug surfaces. History is a copy; mutating it does not affect the
// engine.
type State struct {
	// StoryID is the id of the bound story, empty when nothing is bound.
	StoryID string `json:"storyId"`

	// CurrentScene is the id of the scene the player is on.
	CurrentScene string `json:"currentScene"`

	// History lists previously visited scene ids in visitation order. The
	// current scene is not part of it.
	History []string `json:"history"`

	// SceneNumber starts at 1 and increments once per choice-driven
	// advance. Direct jumps leave it alone.
	SceneNumber int `json:"sceneNumber"`

	// Terminal reports whether the current scene is an ending.
	Terminal bool `json:"terminal"`
}

// Engine walks a single playthrough through a story graph. The bound story
// is read-only and may be shared between engines; all mutable state lives
// here. Safe for concurrent use.
//
// History is an append-only log, not a stack: there is no back-one-scene
// operation, the log exists for replay and analytics and is cleared only by
// a (re)start.
type Engine struct {
	mu          sync.Mutex
	story       *story.Story
	current     string
	history     []string
	sceneNumber int
}

// NewEngine returns an unbound engine. Call [Engine.Start] to bind a story
// before navigating.
func NewEngine() *Engine {
	return &Engine{}
}

// Start binds the engine to st and moves to its start scene with fresh
// history and the counter at 1. Starting while already bound re-binds and
// resets, regardless of whether st is the same story.
func (e *Engine) Start(st *story.Story) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if st == nil {
		return &story.NavigationError{Scene: story.StartScene}
	}
	if _, ok := st.Scenes[story.StartScene]; !ok {
		return &story.NavigationError{StoryID: st.ID, Scene: story.StartScene}
	}

	e.story = st
	e.current = story.StartScene
	e.history = nil
	e.sceneNumber = 1
	return nil
}

// Restart begins the bound story again: same story, empty history, counter
// back at 1. Without a bound story it is a no-op.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.story == nil {
		return
	}
	e.current = story.StartScene
	e.history = nil
	e.sceneNumber = 1
}

// GoTo jumps directly to sceneID, pushing the scene being left onto the
// history. The counter does not move; only [Engine.Choose] advances it. On
// an unbound engine or an unknown scene id the error is a
// [*story.NavigationError] and the session state is untouched.
func (e *Engine) GoTo(sceneID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goTo(sceneID)
}

// goTo performs the transition. Callers hold e.mu.
func (e *Engine) goTo(sceneID string) error {
	if e.story == nil {
		return &story.NavigationError{Scene: sceneID}
	}
	if _, ok := e.story.Scenes[sceneID]; !ok {
		return &story.NavigationError{StoryID: e.story.ID, Scene: sceneID}
	}
	if e.current != "" {
		e.history = append(e.history, e.current)
	}
	e.current = sceneID
	return nil
}

// Choose applies ch: it advances to ch.NextScene and increments the scene
// counter. This is the only operation that moves the counter. A choice
// naming an unknown scene fails with a [*story.NavigationError], leaving
// state — counter included — unchanged.
func (e *Engine) Choose(ch story.Choice) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.goTo(ch.NextScene); err != nil {
		return err
	}
	e.sceneNumber++
	return nil
}

// State returns a snapshot of the playthrough.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := State{
		CurrentScene: e.current,
		History:      append([]string(nil), e.history...),
		SceneNumber:  e.sceneNumber,
	}
	if s.History == nil {
		s.History = []string{}
	}
	if e.story != nil {
		s.StoryID = e.story.ID
		if sc, ok := e.story.Scenes[e.current]; ok {
			s.Terminal = sc.IsEnding
		}
	}
	return s
}

// CurrentScene returns the scene the player is on. The second return is
// false on an unbound engine.
func (e *Engine) CurrentScene() (story.Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.story == nil {
		return story.Scene{}, false
	}
	sc, ok := e.story.Scenes[e.current]
	return sc, ok
}

// Story returns the bound story, or nil.
func (e *Engine) Story() *story.Story {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.story
}
