// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NavTarget says whether an extracted marker drives the presentation
// or the active game.
type NavTarget string

const (
	TargetSlide NavTarget = "slide"
	TargetGame  NavTarget = "game"
)

// NavCommand is one navigation command extracted from speech text.
// Index is 0-based and meaningful only for goto. Position is the
// marker's byte offset in the original text, preserved so commands can
// be timed against speech if needed.
type NavCommand struct {
	Target   NavTarget
	Action   NavAction
	Index    int
	Position int
}

// Silent navigation markers. The AI participant embeds these in its
// responses to drive slides and games; they are stripped before speech
// synthesis so the student never hears them. Slide goto markers are
// 1-indexed on the wire and converted to 0-indexed here, matching the
// game markers.
var (
	slideNextMarker = regexp.MustCompile(`(?i)\[NEXT\]|\[SLIDE:NEXT\]|\[>>>\]|\[FORWARD\]`)
	slidePrevMarker = regexp.MustCompile(`(?i)\[PREV\]|\[BACK\]|\[SLIDE:PREV\]|\[<<<\]|\[PREVIOUS\]`)
	slideGotoMarker = regexp.MustCompile(`(?i)\[SLIDE:(\d+)\]|\[GOTO:(\d+)\]|\[S(\d+)\]|\[#(\d+)\]`)

	gameNextMarker = regexp.MustCompile(`(?i)\[GAME:NEXT\]|\[G>>>\]|\[GNEXT\]`)
	gamePrevMarker = regexp.MustCompile(`(?i)\[GAME:PREV\]|\[G<<<\]|\[GPREV\]|\[GAME:BACK\]`)
	gameGotoMarker = regexp.MustCompile(`(?i)\[GAME:(\d+)\]|\[ITEM:(\d+)\]|\[G(\d+)\]`)
	gameHintMarker = regexp.MustCompile(`(?i)\[GAME:HINT\]|\[HINT\]|\[GHINT\]`)

	allMarkers = regexp.MustCompile(`(?i)` +
		`\[GAME:NEXT\]|\[G>>>\]|\[GNEXT\]|` +
		`\[GAME:PREV\]|\[G<<<\]|\[GPREV\]|\[GAME:BACK\]|` +
		`\[GAME:\d+\]|\[ITEM:\d+\]|\[G\d+\]|` +
		`\[GAME:HINT\]|\[HINT\]|\[GHINT\]|` +
		`\[NEXT\]|\[SLIDE:NEXT\]|\[>>>\]|\[FORWARD\]|` +
		`\[PREV\]|\[BACK\]|\[SLIDE:PREV\]|\[<<<\]|\[PREVIOUS\]|` +
		`\[SLIDE:\d+\]|\[GOTO:\d+\]|\[S\d+\]|\[#\d+\]`)

	collapseSpace = regexp.MustCompile(`\s+`)
)

// ExtractCommands detects navigation markers in text, returning the
// cleaned text with all markers stripped and the commands in the order
// they appear. Text without markers comes back unchanged apart from
// whitespace normalization around stripped spans. Bracketed text that
// matches no marker is left alone.
func ExtractCommands(text string) (string, []NavCommand) {
	var commands []NavCommand

	appendSimple := func(re *regexp.Regexp, target NavTarget, action NavAction) {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			commands = append(commands, NavCommand{
				Target:   target,
				Action:   action,
				Index:    -1,
				Position: loc[0],
			})
		}
	}

	appendGoto := func(re *regexp.Regexp, target NavTarget) {
		for _, match := range re.FindAllStringSubmatchIndex(text, -1) {
			number := firstGroup(text, match)
			if number <= 0 {
				continue
			}
			commands = append(commands, NavCommand{
				Target:   target,
				Action:   ActionGoto,
				Index:    number - 1, // wire markers are 1-indexed
				Position: match[0],
			})
		}
	}

	// Game markers first: [GAME:NEXT] would otherwise also match the
	// bare slide patterns after prefix stripping.
	appendGoto(gameGotoMarker, TargetGame)
	appendSimple(gameNextMarker, TargetGame, ActionNext)
	appendSimple(gamePrevMarker, TargetGame, ActionPrev)
	appendSimple(gameHintMarker, TargetGame, ActionHint)

	appendGoto(slideGotoMarker, TargetSlide)
	appendSimple(slideNextMarker, TargetSlide, ActionNext)
	appendSimple(slidePrevMarker, TargetSlide, ActionPrev)

	sort.SliceStable(commands, func(i, j int) bool {
		return commands[i].Position < commands[j].Position
	})

	cleaned := allMarkers.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(collapseSpace.ReplaceAllString(cleaned, " "))
	return cleaned, commands
}

// HasCommands reports whether text contains any navigation marker.
func HasCommands(text string) bool {
	return allMarkers.MatchString(text)
}

// firstGroup returns the first populated capture group of a submatch
// index set as an integer, or 0.
func firstGroup(text string, match []int) int {
	for i := 2; i+1 < len(match); i += 2 {
		if match[i] < 0 {
			continue
		}
		number, err := strconv.Atoi(text[match[i]:match[i+1]])
		if err == nil {
			return number
		}
	}
	return 0
}
