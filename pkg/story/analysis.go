package story

import "slices"

// Report lists advisory authoring problems found by [Story.Analyze]. None of
// these block loading; they flag stories that validate but play badly.
type Report struct {
	// Unreachable lists scene ids that cannot be reached from the start
	// scene by any sequence of choices, sorted.
	Unreachable []string `json:"unreachable,omitempty"`

	// DeadEnds lists non-ending scenes with no choices, sorted. A player
	// reaching one of these is stuck without the story ending.
	DeadEnds []string `json:"deadEnds,omitempty"`

	// EndingReachable reports whether at least one ending scene is reachable
	// from the start scene. Validation only requires an ending to exist
	// somewhere in the graph, so this can be false for a valid story.
	EndingReachable bool `json:"endingReachable"`
}

// Clean reports whether the analysis found nothing to flag.
func (r Report) Clean() bool {
	return len(r.Unreachable) == 0 && len(r.DeadEnds) == 0 && r.EndingReachable
}

// Analyze walks the story graph from the start scene and reports advisory
// problems: unreachable scenes, dead-end scenes, and whether any ending can
// actually be reached. It assumes the story has passed [Story.Validate];
// on an unvalidated story the results are best-effort.
func (s *Story) Analyze() Report {
	var rep Report

	// BFS over choice edges from the start scene. Endings are terminal:
	// their choices, if any, are ignored, matching navigation behaviour.
	visited := make(map[string]bool, len(s.Scenes))
	queue := []string{StartScene}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		scene, ok := s.Scenes[id]
		if !ok {
			continue
		}
		visited[id] = true
		if scene.IsEnding {
			rep.EndingReachable = true
			continue
		}
		for _, choice := range scene.Choices {
			if !visited[choice.NextScene] {
				queue = append(queue, choice.NextScene)
			}
		}
	}

	for id, scene := range s.Scenes {
		if !visited[id] {
			rep.Unreachable = append(rep.Unreachable, id)
		}
		if !scene.IsEnding && len(scene.Choices) == 0 {
			rep.DeadEnds = append(rep.DeadEnds, id)
		}
	}
	slices.Sort(rep.Unreachable)
	slices.Sort(rep.DeadEnds)

	return rep
}
