// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "testing"

func TestExtractSlideMarkers(t *testing.T) {
	text := "Great job! [NEXT] Now on this slide, we see the grammar rules."
	cleaned, commands := ExtractCommands(text)

	if cleaned != "Great job! Now on this slide, we see the grammar rules." {
		t.Fatalf("cleaned = %q", cleaned)
	}
	if len(commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(commands))
	}
	cmd := commands[0]
	if cmd.Target != TargetSlide || cmd.Action != ActionNext {
		t.Fatalf("command = %+v, want slide next", cmd)
	}
}

func TestExtractGotoIsZeroIndexed(t *testing.T) {
	_, commands := ExtractCommands("[SLIDE:5] Here you can see the summary.")
	if len(commands) != 1 {
		t.Fatalf("got %d commands, want 1", len(commands))
	}
	if commands[0].Action != ActionGoto || commands[0].Index != 4 {
		t.Fatalf("command = %+v, want goto index 4", commands[0])
	}
}

func TestExtractMixedMarkersInOrder(t *testing.T) {
	text := "Let me show you [SLIDE:2] this example and then [NEXT] the next one."
	cleaned, commands := ExtractCommands(text)

	if cleaned != "Let me show you this example and then the next one." {
		t.Fatalf("cleaned = %q", cleaned)
	}
	if len(commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(commands))
	}
	if commands[0].Action != ActionGoto || commands[1].Action != ActionNext {
		t.Fatalf("commands out of order: %+v", commands)
	}
	if commands[0].Position >= commands[1].Position {
		t.Fatal("positions should be ascending")
	}
}

func TestExtractGameMarkers(t *testing.T) {
	cases := []struct {
		text   string
		action NavAction
		index  int
	}{
		{"Perfect! [GAME:NEXT] Now try the next sentence.", ActionNext, -1},
		{"Let's go back. [GAME:PREV] Look at this one again.", ActionPrev, -1},
		{"[ITEM:3] Notice the word order here.", ActionGoto, 2},
		{"That's tricky! [HINT] Here's a clue.", ActionHint, -1},
	}

	for _, tc := range cases {
		_, commands := ExtractCommands(tc.text)
		if len(commands) != 1 {
			t.Fatalf("%q: got %d commands, want 1", tc.text, len(commands))
		}
		cmd := commands[0]
		if cmd.Target != TargetGame || cmd.Action != tc.action || cmd.Index != tc.index {
			t.Fatalf("%q: command = %+v", tc.text, cmd)
		}
	}
}

func TestGameMarkerNotDoubleCountedAsSlide(t *testing.T) {
	_, commands := ExtractCommands("Well done! [GAME:NEXT] Keep going.")
	if len(commands) != 1 {
		t.Fatalf("got %d commands, want 1: %+v", len(commands), commands)
	}
	if commands[0].Target != TargetGame {
		t.Fatalf("target = %q, want game", commands[0].Target)
	}
}

func TestPlainTextPassesThrough(t *testing.T) {
	text := "The difference between 'since' and 'for' is [subtle]."
	cleaned, commands := ExtractCommands(text)
	if len(commands) != 0 {
		t.Fatalf("plain text produced commands: %+v", commands)
	}
	if cleaned != text {
		t.Fatalf("cleaned = %q, want unchanged text", cleaned)
	}
	if HasCommands(text) {
		t.Fatal("HasCommands should be false for plain text")
	}
}

func TestMultipleGameAdvances(t *testing.T) {
	_, commands := ExtractCommands("Great work! [GAME:NEXT] [GAME:NEXT] Let's skip ahead two.")
	if len(commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(commands))
	}
	for _, cmd := range commands {
		if cmd.Target != TargetGame || cmd.Action != ActionNext {
			t.Fatalf("command = %+v, want game next", cmd)
		}
	}
}
