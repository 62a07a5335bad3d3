// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"github.com/podium-foundation/podium/protocol"
	"github.com/podium-foundation/podium/store"
)

// Mode is the machine's activity mode. Exactly one mode is current at
// any time: presentation and game are mutually exclusive on screen.
type Mode int

const (
	// ModeIdle is the empty room: no slides or game on screen.
	ModeIdle Mode = iota
	// ModePresenting means a slide deck is loaded and visible.
	ModePresenting
	// ModeGaming means an interactive game is loaded and visible.
	ModeGaming
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePresenting:
		return "presenting"
	case ModeGaming:
		return "gaming"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// GameResult is the outcome of a finished game.
type GameResult struct {
	GameID       string
	CorrectCount int
	TotalItems   int
	ScorePercent int
	Band         protocol.ScoreBand
}

// Machine holds the content state for one room. It is not safe for
// concurrent use; the synchronizer serializes all access under its
// dispatch lock.
type Machine struct {
	mode Mode

	// Presentation state. slideIndex survives mode switches so a game
	// played mid-deck returns to the same slide.
	presentationID string
	slides         []protocol.SlideInfo
	slideIndex     int
	controller     store.Controller

	// Game state.
	gameID     string
	itemIndex  int
	totalItems int
	correct    int
	answered   int
	finished   bool

	// Whether a presentation was on screen when the current game
	// started, so ending the game can restore it.
	resumePresentation bool
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{controller: store.ControllerShared}
}

// Mode reports the current activity mode.
func (m *Machine) Mode() Mode { return m.mode }

// SlideIndex reports the current (or resume) slide index. It is 0 when
// no deck has ever been loaded.
func (m *Machine) SlideIndex() int { return m.slideIndex }

// TotalSlides reports the size of the loaded deck, 0 when none.
func (m *Machine) TotalSlides() int { return len(m.slides) }

// PresentationID reports the id of the loaded deck, empty when none.
func (m *Machine) PresentationID() string { return m.presentationID }

// Controller reports who may drive slide navigation.
func (m *Machine) Controller() store.Controller { return m.controller }

// SetController changes who may drive slide navigation.
func (m *Machine) SetController(c store.Controller) error {
	if !c.Valid() {
		return fmt.Errorf("invalid controller %q", c)
	}
	m.controller = c
	return nil
}

// CurrentSlide returns the slide at the current index, or false when
// no deck is loaded.
func (m *Machine) CurrentSlide() (protocol.SlideInfo, bool) {
	if len(m.slides) == 0 {
		return protocol.SlideInfo{}, false
	}
	return m.slides[m.slideIndex], true
}

// Slides returns the loaded deck.
func (m *Machine) Slides() []protocol.SlideInfo { return m.slides }

// LoadSlides installs a deck and enters presenting mode at slide 0. A
// deck loaded while a game is on screen replaces the resume target but
// does not interrupt the game.
func (m *Machine) LoadSlides(presentationID string, slides []protocol.SlideInfo) error {
	if len(slides) == 0 {
		return fmt.Errorf("load slides %q: empty deck", presentationID)
	}
	m.presentationID = presentationID
	m.slides = slides
	m.slideIndex = 0
	if m.mode == ModeGaming {
		m.resumePresentation = true
		return nil
	}
	m.mode = ModePresenting
	return nil
}

// StartPresentation re-activates a previously loaded deck, resuming at
// the preserved index. Starting while a game is on screen ends the
// game first (counters discarded).
func (m *Machine) StartPresentation() error {
	if len(m.slides) == 0 {
		return fmt.Errorf("start presentation: no deck loaded")
	}
	if m.mode == ModeGaming {
		m.clearGame()
	}
	m.mode = ModePresenting
	return nil
}

// EndPresentation returns to idle. The deck and index are kept so a
// later StartPresentation resumes in place.
func (m *Machine) EndPresentation() {
	if m.mode == ModePresenting {
		m.mode = ModeIdle
	}
}

// Navigate applies a slide navigation verb and returns the resulting
// index and whether it changed. Targets are clamped to the deck:
// next on the last slide and prev on the first are no-ops, and goto
// beyond either end lands on the nearest valid slide.
func (m *Machine) Navigate(action protocol.NavAction, index int) (int, bool, error) {
	if len(m.slides) == 0 {
		return 0, false, fmt.Errorf("navigate: no deck loaded")
	}
	target := m.slideIndex
	switch action {
	case protocol.ActionNext:
		target++
	case protocol.ActionPrev:
		target--
	case protocol.ActionGoto:
		target = index
	default:
		return m.slideIndex, false, fmt.Errorf("navigate: unsupported action %q", action)
	}
	target = clamp(target, 0, len(m.slides)-1)
	if target == m.slideIndex {
		return m.slideIndex, false, nil
	}
	m.slideIndex = target
	return target, true, nil
}

// SetSlideIndex installs a remotely-decided index, clamped to the
// deck. Used by reconciliation, which bypasses verb semantics.
func (m *Machine) SetSlideIndex(index int) (int, bool) {
	if len(m.slides) == 0 {
		return 0, false
	}
	target := clamp(index, 0, len(m.slides)-1)
	if target == m.slideIndex {
		return m.slideIndex, false
	}
	m.slideIndex = target
	return target, true
}

// GameID reports the id of the loaded game, empty when none.
func (m *Machine) GameID() string { return m.gameID }

// ItemIndex reports the current game item.
func (m *Machine) ItemIndex() int { return m.itemIndex }

// TotalItems reports the size of the loaded game.
func (m *Machine) TotalItems() int { return m.totalItems }

// GameFinished reports whether every item has been answered.
func (m *Machine) GameFinished() bool { return m.finished }

// StartGame enters gaming mode. A presentation on screen is hidden,
// not cleared: its index is untouched and ending the game restores it.
func (m *Machine) StartGame(gameID string, totalItems int) error {
	if totalItems <= 0 {
		return fmt.Errorf("start game %q: no items", gameID)
	}
	m.resumePresentation = m.mode == ModePresenting
	m.mode = ModeGaming
	m.gameID = gameID
	m.itemIndex = 0
	m.totalItems = totalItems
	m.correct = 0
	m.answered = 0
	m.finished = false
	return nil
}

// NavigateGame applies a navigation verb to the game item index.
func (m *Machine) NavigateGame(action protocol.NavAction, index int) (int, bool, error) {
	if m.mode != ModeGaming {
		return 0, false, fmt.Errorf("navigate game: no game active")
	}
	target := m.itemIndex
	switch action {
	case protocol.ActionNext:
		target++
	case protocol.ActionPrev:
		target--
	case protocol.ActionGoto:
		target = index
	default:
		return m.itemIndex, false, fmt.Errorf("navigate game: unsupported action %q", action)
	}
	target = clamp(target, 0, m.totalItems-1)
	if target == m.itemIndex {
		return m.itemIndex, false, nil
	}
	m.itemIndex = target
	return target, true, nil
}

// RecordAnswer tallies one answered item. It returns true when the
// answer finished the game; the caller then announces the result and
// schedules EndGame after the celebratory delay.
func (m *Machine) RecordAnswer(correct bool) (bool, error) {
	if m.mode != ModeGaming {
		return false, fmt.Errorf("record answer: no game active")
	}
	if m.finished {
		return false, fmt.Errorf("record answer: game already finished")
	}
	m.answered++
	if correct {
		m.correct++
	}
	if m.answered >= m.totalItems {
		m.finished = true
		return true, nil
	}
	return false, nil
}

// Result computes the score for the current game.
func (m *Machine) Result() GameResult {
	percent := 0
	if m.totalItems > 0 {
		percent = m.correct * 100 / m.totalItems
	}
	return GameResult{
		GameID:       m.gameID,
		CorrectCount: m.correct,
		TotalItems:   m.totalItems,
		ScorePercent: percent,
		Band:         protocol.BandForScore(percent),
	}
}

// EndGame clears the game and restores the presentation if one was on
// screen when the game started, at its preserved index. Otherwise the
// machine goes idle.
func (m *Machine) EndGame() {
	if m.mode != ModeGaming {
		return
	}
	resume := m.resumePresentation && len(m.slides) > 0
	m.clearGame()
	if resume {
		m.mode = ModePresenting
	} else {
		m.mode = ModeIdle
	}
}

func (m *Machine) clearGame() {
	m.gameID = ""
	m.itemIndex = 0
	m.totalItems = 0
	m.correct = 0
	m.answered = 0
	m.finished = false
	m.resumePresentation = false
	m.mode = ModeIdle
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
