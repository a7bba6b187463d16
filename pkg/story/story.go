// Package story defines the branching-narrative story graph: a [Story] is a
// set of [Scene] nodes connected by player-facing [Choice] edges, starting at
// the reserved "start" scene and terminating at ending scenes.
//
// The package covers the full document lifecycle short of I/O: [Parse] decodes
// the persisted JSON shape, [Story.Validate] enforces the graph integrity
// rules a story must satisfy to be playable, [Story.Analyze] reports advisory
// authoring problems that validation deliberately tolerates, and [FormatHTML]
// renders the inline emphasis markup used in scene text.
//
// A Story is treated as immutable once validated. Callers that cache or share
// stories across sessions must not mutate them.
package story

import (
	"encoding/json"
	"strings"
)

// StartScene is the reserved scene key every story enters at.
const StartScene = "start"

// EndingType classifies a terminal scene. The well-known values are
// [EndingSuccess], [EndingNeutral], and [EndingBad]; authors may use custom
// values, which fall back to the default ending title.
type EndingType string

const (
	EndingSuccess EndingType = "success"
	EndingNeutral EndingType = "neutral"
	EndingBad     EndingType = "bad"
)

// Story is a complete branching narrative document: display metadata plus a
// directed graph of scenes keyed by scene id.
type Story struct {
	// ID uniquely identifies the story within a store. When the source
	// document carries no explicit id, the store derives one from the source
	// reference (filename minus the .json extension).
	ID string `json:"id,omitempty"`

	// Source is the reference the story was loaded from. Populated by the
	// store, not by the document itself.
	Source string `json:"-"`

	// Title is the display title. Required.
	Title string `json:"title"`

	// Description is a short blurb shown in the story list.
	Description string `json:"description"`

	// Author is the story author's display name.
	Author string `json:"author"`

	// Difficulty is an opaque display string (e.g., "easy", "hard").
	Difficulty string `json:"difficulty"`

	// EstimatedTime is an opaque display string (e.g., "15 minutes").
	EstimatedTime string `json:"estimatedTime"`

	// Scenes maps scene id to scene. Required, non-empty, and must contain
	// the [StartScene] key.
	Scenes map[string]Scene `json:"scenes"`
}

// Scene is one narrative node in the story graph.
type Scene struct {
	// Text is the narrative content. May contain inline emphasis markup
	// (**bold**, *italic*) and newlines; see [FormatHTML].
	Text string `json:"text"`

	// Image optionally references a display asset. Empty or blank means the
	// scene has no image.
	Image string `json:"image,omitempty"`

	// IsEnding marks a terminal scene. Ending scenes have no outgoing
	// choices; any present are ignored by navigation and validation.
	IsEnding bool `json:"isEnding,omitempty"`

	// Choices are the outgoing edges, in display order. Semantically required
	// and non-empty when IsEnding is false, though validation tolerates an
	// empty list (see [Story.Analyze]).
	Choices []Choice `json:"choices,omitempty"`

	// EndingType classifies the ending. Only meaningful when IsEnding is true.
	EndingType EndingType `json:"endingType,omitempty"`

	// EndingTitle overrides the default display title for the ending.
	EndingTitle string `json:"endingTitle,omitempty"`
}

// Choice is a directed edge from one scene to another, labelled with the text
// shown to the player.
type Choice struct {
	// Text is the label shown on the choice button.
	Text string `json:"text"`

	// NextScene is the id of the scene this choice leads to. Must resolve to
	// a key of the story's Scenes map; dangling references fail validation.
	NextScene string `json:"nextScene"`
}

// Metadata is the display summary of a story, used for story lists.
type Metadata struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Author        string `json:"author"`
	Difficulty    string `json:"difficulty"`
	EstimatedTime string `json:"estimatedTime"`
}

// Parse decodes a persisted story document from raw JSON. It returns a
// [*ParseError] when the bytes are not a well-formed story document.
//
// Parse does not validate graph integrity; call [Story.Validate] on the
// result before admitting the story anywhere a playable story is expected.
func Parse(raw []byte) (*Story, error) {
	var s Story
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &s, nil
}

// Metadata returns the story's display summary.
func (s *Story) Metadata() Metadata {
	return Metadata{
		ID:            s.ID,
		Source:        s.Source,
		Title:         s.Title,
		Description:   s.Description,
		Author:        s.Author,
		Difficulty:    s.Difficulty,
		EstimatedTime: s.EstimatedTime,
	}
}

// defaultEndingTitles maps the well-known ending types to display titles.
var defaultEndingTitles = map[EndingType]string{
	EndingSuccess: "Success!",
	EndingNeutral: "Complete",
	EndingBad:     "The End",
}

// DefaultEndingTitle returns the display title for an ending type. Custom or
// empty types fall back to "The End".
func DefaultEndingTitle(t EndingType) string {
	if title, ok := defaultEndingTitles[t]; ok {
		return title
	}
	return "The End"
}

// EndingHeading resolves the heading to display for an ending scene: the
// scene's explicit EndingTitle when set, otherwise the default title for its
// ending type.
func (sc Scene) EndingHeading() string {
	if strings.TrimSpace(sc.EndingTitle) != "" {
		return sc.EndingTitle
	}
	return DefaultEndingTitle(sc.EndingType)
}

// HasImage reports whether the scene references a display asset. Blank
// references count as absent.
func (sc Scene) HasImage() bool {
	return strings.TrimSpace(sc.Image) != ""
}
