// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "encoding/json"

// Type discriminates data-channel message variants on the wire.
type Type string

// Wire message types. The set is closed: Decode maps anything else to
// Unhandled.
const (
	TypeSlideCommand      Type = "slide_command"
	TypeStartPresentation Type = "start_presentation"
	TypeEndPresentation   Type = "end_presentation"
	TypeLoadPresentation  Type = "load_presentation"
	TypeLoadSlides        Type = "load_slides"
	TypeSlideChanged      Type = "slide_changed"
	TypePresentationReady Type = "presentation_ready"
	TypeSlideScreenshot   Type = "slide_screenshot"
	TypeSlideURL          Type = "slide_url"
	TypeSlidesContext     Type = "slides_context"
	TypeLoadGame          Type = "load_game"
	TypeGameCommand       Type = "game_command"
	TypeGameLoaded        Type = "game_loaded"
	TypeGameState         Type = "game_state"
	TypeGameComplete      Type = "game_complete"
	TypeItemChecked       Type = "item_checked"

	// TypeUnhandled is the local decode outcome for unknown wire
	// types. Never sent.
	TypeUnhandled Type = "unhandled"
)

// NavAction is a navigation verb carried by slide and game commands.
type NavAction string

const (
	ActionNext NavAction = "next"
	ActionPrev NavAction = "prev"
	ActionGoto NavAction = "goto"
	// ActionHint requests a hint for the current game item. Valid only
	// in game commands.
	ActionHint NavAction = "hint"
)

// SlideType is the semantic role of a slide within a lesson.
type SlideType string

const (
	SlideTitle      SlideType = "title"
	SlideObjectives SlideType = "objectives"
	SlideContent    SlideType = "content"
	SlideGrammar    SlideType = "grammar"
	SlideVocabulary SlideType = "vocabulary"
	SlideExercise   SlideType = "exercise"
	SlideSummary    SlideType = "summary"
)

// Message is one data-channel message. The concrete types below form
// the closed set of variants; messageType keeps the set sealed to this
// package.
type Message interface {
	messageType() Type
}

// MessageType reports the wire type of msg.
func MessageType(msg Message) Type { return msg.messageType() }

// SlideCommand asks the receiver to navigate the presentation.
// SlideIndex is set only for goto; next and prev leave it nil. Some
// senders put the verb under "command" instead of "action" — Decode
// accepts both.
type SlideCommand struct {
	Action     NavAction `json:"action"`
	SlideIndex *int      `json:"slideIndex,omitempty"`
}

func (*SlideCommand) messageType() Type { return TypeSlideCommand }

// StartPresentation activates presentation mode on the receiver.
type StartPresentation struct{}

func (*StartPresentation) messageType() Type { return TypeStartPresentation }

// EndPresentation deactivates presentation mode on the receiver.
type EndPresentation struct{}

func (*EndPresentation) messageType() Type { return TypeEndPresentation }

// LoadPresentation tells the local side to load a stored presentation
// by id.
type LoadPresentation struct {
	PresentationID string `json:"presentationId"`
}

func (*LoadPresentation) messageType() Type { return TypeLoadPresentation }

// SlideInfo describes one slide in a load_slides payload. Markup and
// ImageURL are mutually exclusive content kinds.
type SlideInfo struct {
	Index    int       `json:"index"`
	Type     SlideType `json:"type,omitempty"`
	Title    string    `json:"title,omitempty"`
	Markup   string    `json:"markup,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// LoadSlides delivers inline slide content to the local side.
type LoadSlides struct {
	ContentID  string      `json:"contentId"`
	Title      string      `json:"title,omitempty"`
	Slides     []SlideInfo `json:"slides"`
	SlideCount int         `json:"slideCount"`
}

func (*LoadSlides) messageType() Type { return TypeLoadSlides }

// SlideChanged announces a confirmed local index change to the remote
// participant.
type SlideChanged struct {
	SlideIndex  int `json:"slideIndex"`
	TotalSlides int `json:"totalSlides"`
}

func (*SlideChanged) messageType() Type { return TypeSlideChanged }

// PresentationReady announces that slide content is loaded and
// renderable.
type PresentationReady struct {
	PresentationID string      `json:"presentationId"`
	TotalSlides    int         `json:"totalSlides"`
	SlideContent   []SlideInfo `json:"slideContent,omitempty"`
}

func (*PresentationReady) messageType() Type { return TypePresentationReady }

// SlideScreenshot relays a rasterized snapshot of the taught content
// for the AI participant's vision input. SlideIndex is the index the
// capture was issued for, which may trail the live index; receivers
// discard mismatches.
type SlideScreenshot struct {
	ImageBase64 string    `json:"imageBase64"`
	SlideIndex  int       `json:"slideIndex"`
	SlideType   SlideType `json:"slideType,omitempty"`
	Timestamp   int64     `json:"timestamp"`
}

func (*SlideScreenshot) messageType() Type { return TypeSlideScreenshot }

// SlideURL is the fallback when pixel capture fails for pre-rendered
// image content: the receiver fetches the image itself.
type SlideURL struct {
	URL        string `json:"url"`
	SlideIndex int    `json:"slideIndex"`
	Timestamp  int64  `json:"timestamp"`
}

func (*SlideURL) messageType() Type { return TypeSlideURL }

// SlideContextEntry summarizes one slide for the AI participant's
// lesson planning.
type SlideContextEntry struct {
	Index         int       `json:"index"`
	Type          SlideType `json:"type,omitempty"`
	Title         string    `json:"title,omitempty"`
	TeachingHints string    `json:"teachingHints,omitempty"`
}

// SlidesContext gives the remote participant an overview of the loaded
// deck and the current position.
type SlidesContext struct {
	TotalSlides  int                 `json:"totalSlides"`
	CurrentIndex int                 `json:"currentIndex"`
	Slides       []SlideContextEntry `json:"slides"`
}

func (*SlidesContext) messageType() Type { return TypeSlidesContext }

// LoadGame activates a game. GameData optionally carries the inline
// item set; without it the receiver must already know the game id.
type LoadGame struct {
	GameID       string          `json:"gameId"`
	Title        string          `json:"title,omitempty"`
	GameType     string          `json:"gameType,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Level        string          `json:"level,omitempty"`
	Category     string          `json:"category,omitempty"`
	GameData     json.RawMessage `json:"gameData,omitempty"`
}

func (*LoadGame) messageType() Type { return TypeLoadGame }

// GameCommand asks the local side to navigate the active game.
// ItemIndex is set only for goto.
type GameCommand struct {
	Command   NavAction `json:"command"`
	ItemIndex *int      `json:"itemIndex,omitempty"`
}

func (*GameCommand) messageType() Type { return TypeGameCommand }

// GameLoaded confirms game activation to the remote participant.
type GameLoaded struct {
	GameID     string `json:"gameId"`
	TotalItems int    `json:"totalItems"`
}

func (*GameLoaded) messageType() Type { return TypeGameLoaded }

// GameState reports game progress counters.
type GameState struct {
	ItemIndex      int `json:"itemIndex"`
	TotalItems     int `json:"totalItems"`
	CorrectCount   int `json:"correctCount"`
	IncorrectCount int `json:"incorrectCount"`
}

func (*GameState) messageType() Type { return TypeGameState }

// ScoreBand groups a final game score for the AI participant's
// response framing.
type ScoreBand string

const (
	// BandExcellent is 80% or better.
	BandExcellent ScoreBand = "excellent"
	// BandGood is 50% to 79%.
	BandGood ScoreBand = "good"
	// BandRetry is below 50%.
	BandRetry ScoreBand = "retry"
)

// BandForScore maps a score percentage to its band.
func BandForScore(percent int) ScoreBand {
	switch {
	case percent >= 80:
		return BandExcellent
	case percent >= 50:
		return BandGood
	default:
		return BandRetry
	}
}

// GameComplete reports the final score when all items are done.
type GameComplete struct {
	GameID         string    `json:"gameId"`
	CorrectCount   int       `json:"correctCount"`
	IncorrectCount int       `json:"incorrectCount"`
	ScorePercent   int       `json:"scorePercent"`
	Band           ScoreBand `json:"band"`
}

func (*GameComplete) messageType() Type { return TypeGameComplete }

// ItemChecked reports the outcome of one answered game item.
type ItemChecked struct {
	ItemIndex      int  `json:"itemIndex"`
	Correct        bool `json:"correct"`
	CorrectCount   int  `json:"correctCount"`
	IncorrectCount int  `json:"incorrectCount"`
}

func (*ItemChecked) messageType() Type { return TypeItemChecked }

// Unhandled is the decode outcome for a syntactically valid message
// whose type this build does not recognize. Dispatchers log and skip
// it.
type Unhandled struct {
	// Type is the unrecognized wire type.
	Type string
	// Raw is the full original payload, kept for logging.
	Raw json.RawMessage
}

func (*Unhandled) messageType() Type { return TypeUnhandled }
