package story

// Validate enforces the graph integrity rules a story must satisfy to be
// playable. It returns nil for a valid story, or a [*ValidationError] naming
// the first violated rule. The rules, checked in order:
//
//  1. The story has a title and a non-empty scenes map ([RuleRequiredFields]).
//  2. The scenes map contains the reserved "start" key ([RuleStartScene]).
//  3. Every choice of every non-ending scene resolves to an existing scene
//     ([RuleChoiceTargets]).
//  4. At least one scene is an ending ([RuleEndingExists]).
//
// Validation is deliberately no stricter than this: it does not require the
// start scene to actually reach an ending, and it tolerates non-ending scenes
// with zero choices. [Story.Analyze] reports both conditions as advisory
// findings instead, so that stories accepted by earlier versions keep loading.
func (s *Story) Validate() error {
	if s == nil || s.Title == "" || len(s.Scenes) == 0 {
		return &ValidationError{Rule: RuleRequiredFields}
	}

	if _, ok := s.Scenes[StartScene]; !ok {
		return &ValidationError{Rule: RuleStartScene}
	}

	for id, scene := range s.Scenes {
		if scene.IsEnding {
			continue
		}
		for _, choice := range scene.Choices {
			if _, ok := s.Scenes[choice.NextScene]; !ok {
				return &ValidationError{Rule: RuleChoiceTargets, Scene: id, Target: choice.NextScene}
			}
		}
	}

	hasEnding := false
	for _, scene := range s.Scenes {
		if scene.IsEnding {
			hasEnding = true
			break
		}
	}
	if !hasEnding {
		return &ValidationError{Rule: RuleEndingExists}
	}

	return nil
}
