package story

import "fmt"

// Rule identifies which graph integrity rule a [ValidationError] violated.
type Rule string

const (
	// RuleRequiredFields: a story must have a title and a non-empty scenes map.
	RuleRequiredFields Rule = "required-fields"

	// RuleStartScene: the scenes map must contain the reserved "start" key.
	RuleStartScene Rule = "start-scene"

	// RuleChoiceTargets: every choice of every non-ending scene must point at
	// an existing scene.
	RuleChoiceTargets Rule = "choice-targets"

	// RuleEndingExists: at least one scene must be an ending.
	RuleEndingExists Rule = "ending-exists"
)

// TransportError reports that a story source could not be fetched: the
// transport failed or returned a non-success status. Distinct from
// [ParseError] and [ValidationError] so callers can decide to retry.
type TransportError struct {
	// Ref is the source reference that failed to fetch.
	Ref string

	// Status is the HTTP status code, when the transport is HTTP. Zero for
	// non-HTTP transports.
	Status int

	// Err is the underlying transport error, if any.
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("story: fetch %q: unexpected status %d", e.Ref, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("story: fetch %q: %v", e.Ref, e.Err)
	default:
		return fmt.Sprintf("story: fetch %q failed", e.Ref)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports that fetched content is not a well-formed story document.
type ParseError struct {
	// Ref is the source reference, when known.
	Ref string

	// Err is the underlying decode error.
	Err error
}

func (e *ParseError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("story: parse %q: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("story: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports that a well-formed story document violates a graph
// integrity rule. It names the rule and, where applicable, the scene and the
// dangling choice target so story authors can locate the problem.
type ValidationError struct {
	// Ref is the source reference, when known.
	Ref string

	// Rule is the violated integrity rule.
	Rule Rule

	// Scene is the offending scene id, for rules scoped to a scene.
	Scene string

	// Target is the unresolved nextScene reference, for [RuleChoiceTargets].
	Target string
}

func (e *ValidationError) Error() string {
	prefix := "story: invalid story"
	if e.Ref != "" {
		prefix = fmt.Sprintf("story: invalid story %q", e.Ref)
	}
	switch e.Rule {
	case RuleRequiredFields:
		return prefix + ": missing title or scenes"
	case RuleStartScene:
		return prefix + `: no "start" scene`
	case RuleChoiceTargets:
		return fmt.Sprintf("%s: scene %q has a choice leading to unknown scene %q", prefix, e.Scene, e.Target)
	case RuleEndingExists:
		return prefix + ": no ending scene"
	default:
		return fmt.Sprintf("%s: rule %s violated", prefix, e.Rule)
	}
}

// NotFoundError reports that a requested story id has no known or loadable
// source. Suggestion, when non-empty, is the registered id closest to the
// requested one.
type NotFoundError struct {
	ID         string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("story: story %q not found (did you mean %q?)", e.ID, e.Suggestion)
	}
	return fmt.Sprintf("story: story %q not found", e.ID)
}

// NavigationError reports a transition to a scene id absent from the bound
// story. Given prior validation this indicates a programming or data error;
// the navigation engine reports it and leaves session state unchanged rather
// than failing the process.
type NavigationError struct {
	// StoryID is the id of the bound story, empty when no story is bound.
	StoryID string

	// Scene is the unknown scene id that was requested.
	Scene string
}

func (e *NavigationError) Error() string {
	if e.StoryID == "" {
		return fmt.Sprintf("story: cannot navigate to %q: no story bound", e.Scene)
	}
	return fmt.Sprintf("story: scene %q does not exist in story %q", e.Scene, e.StoryID)
}
