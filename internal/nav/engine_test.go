package nav

import (
	"errors"
	"testing"

	"github.com/MrWong99/fabula/pkg/story"
)

// twoSceneStory is the smallest playable graph: start with one choice into
// an ending.
func twoSceneStory() *story.Story {
	return &story.Story{
		ID:    "demo",
		Title: "Demo",
		Scenes: map[string]story.Scene{
			"start": {
				Text:    "A",
				Choices: []story.Choice{{Text: "go", NextScene: "end"}},
			},
			"end": {
				Text:       "B",
				IsEnding:   true,
				EndingType: story.EndingSuccess,
			},
		},
	}
}

func TestEngine_StartInitialState(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := e.State()
	if st.CurrentScene != "start" {
		t.Errorf("current = %q, want start", st.CurrentScene)
	}
	if st.SceneNumber != 1 {
		t.Errorf("sceneNumber = %d, want 1", st.SceneNumber)
	}
	if len(st.History) != 0 {
		t.Errorf("history = %v, want empty", st.History)
	}
	if st.Terminal {
		t.Error("start scene should not be terminal")
	}
	if st.StoryID != "demo" {
		t.Errorf("storyID = %q, want demo", st.StoryID)
	}
}

func TestEngine_ChooseAdvancesToEnding(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.Choose(story.Choice{Text: "go", NextScene: "end"}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	st := e.State()
	if st.CurrentScene != "end" {
		t.Errorf("current = %q, want end", st.CurrentScene)
	}
	if st.SceneNumber != 2 {
		t.Errorf("sceneNumber = %d, want 2", st.SceneNumber)
	}
	if len(st.History) != 1 || st.History[0] != "start" {
		t.Errorf("history = %v, want [start]", st.History)
	}
	if !st.Terminal {
		t.Error("ending scene should be terminal")
	}
}

func TestEngine_ChooseUnknownSceneLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := e.Choose(story.Choice{Text: "go", NextScene: "nowhere"})
	var nerr *story.NavigationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NavigationError, got %T: %v", err, err)
	}
	if nerr.Scene != "nowhere" || nerr.StoryID != "demo" {
		t.Errorf("error = %+v, want scene nowhere in demo", nerr)
	}

	st := e.State()
	if st.CurrentScene != "start" || st.SceneNumber != 1 || len(st.History) != 0 {
		t.Errorf("state changed on failed choose: %+v", st)
	}
}

func TestEngine_GoToDoesNotAdvanceCounter(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.GoTo("end"); err != nil {
		t.Fatalf("GoTo: %v", err)
	}

	st := e.State()
	if st.CurrentScene != "end" {
		t.Errorf("current = %q, want end", st.CurrentScene)
	}
	if st.SceneNumber != 1 {
		t.Errorf("sceneNumber = %d, want 1 after direct jump", st.SceneNumber)
	}
	if len(st.History) != 1 || st.History[0] != "start" {
		t.Errorf("history = %v, want [start]", st.History)
	}
}

func TestEngine_GoToUnbound(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	err := e.GoTo("start")
	var nerr *story.NavigationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NavigationError, got %T: %v", err, err)
	}
	if nerr.StoryID != "" {
		t.Errorf("storyID = %q, want empty for unbound engine", nerr.StoryID)
	}
}

func TestEngine_HistoryAccumulatesAcrossChoices(t *testing.T) {
	t.Parallel()
	st := &story.Story{
		ID: "chain",
		Scenes: map[string]story.Scene{
			"start": {Text: "a", Choices: []story.Choice{{Text: "n", NextScene: "mid"}}},
			"mid":   {Text: "b", Choices: []story.Choice{{Text: "n", NextScene: "end"}}},
			"end":   {Text: "c", IsEnding: true},
		},
	}
	e := NewEngine()
	if err := e.Start(st); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Choose(story.Choice{NextScene: "mid"}); err != nil {
		t.Fatalf("choose mid: %v", err)
	}
	if err := e.Choose(story.Choice{NextScene: "end"}); err != nil {
		t.Fatalf("choose end: %v", err)
	}

	got := e.State()
	if len(got.History) != 2 || got.History[0] != "start" || got.History[1] != "mid" {
		t.Errorf("history = %v, want [start mid]", got.History)
	}
	if got.SceneNumber != 3 {
		t.Errorf("sceneNumber = %d, want 3", got.SceneNumber)
	}
}

func TestEngine_RestartResets(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Choose(story.Choice{NextScene: "end"}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	e.Restart()
	st := e.State()
	if st.CurrentScene != "start" || st.SceneNumber != 1 || len(st.History) != 0 {
		t.Errorf("restart did not reset: %+v", st)
	}
	if st.StoryID != "demo" {
		t.Errorf("restart should keep the bound story, got %q", st.StoryID)
	}
}

func TestEngine_RestartUnboundIsNoop(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	e.Restart()
	if st := e.State(); st.StoryID != "" || st.CurrentScene != "" {
		t.Errorf("unexpected state on unbound engine: %+v", st)
	}
}

func TestEngine_StartRebindsAndResets(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := e.Choose(story.Choice{NextScene: "end"}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	other := twoSceneStory()
	other.ID = "other"
	if err := e.Start(other); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	st := e.State()
	if st.StoryID != "other" || st.CurrentScene != "start" || st.SceneNumber != 1 || len(st.History) != 0 {
		t.Errorf("rebind did not reset: %+v", st)
	}
}

func TestEngine_StartRejectsStoryWithoutStartScene(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	err := e.Start(&story.Story{ID: "broken", Scenes: map[string]story.Scene{"only": {Text: "x"}}})
	var nerr *story.NavigationError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected *NavigationError, got %T: %v", err, err)
	}
}

func TestEngine_StateHistoryIsACopy(t *testing.T) {
	t.Parallel()
	e := NewEngine()
	if err := e.Start(twoSceneStory()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Choose(story.Choice{NextScene: "end"}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	st := e.State()
	st.History[0] = "tampered"
	if again := e.State(); again.History[0] != "start" {
		t.Error("State history must be a copy")
	}
}
