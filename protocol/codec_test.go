// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeInjectsType(t *testing.T) {
	data, err := Encode(&SlideChanged{SlideIndex: 3, TotalSlides: 10})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshaling encoded payload: %v", err)
	}
	if fields["type"] != "slide_changed" {
		t.Fatalf("type = %v, want slide_changed", fields["type"])
	}
	if fields["slideIndex"] != float64(3) {
		t.Fatalf("slideIndex = %v, want 3", fields["slideIndex"])
	}
}

func TestEncodeEmptyVariant(t *testing.T) {
	data, err := Encode(&StartPresentation{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := msg.(*StartPresentation); !ok {
		t.Fatalf("decoded %T, want *StartPresentation", msg)
	}
}

func TestEncodeRejectsUnhandled(t *testing.T) {
	if _, err := Encode(&Unhandled{Type: "mystery"}); err == nil {
		t.Fatal("Encode(Unhandled) should fail")
	}
}

func TestDecodeVariants(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		check   func(t *testing.T, msg Message)
	}{
		{
			name:    "slide command next",
			payload: `{"type":"slide_command","action":"next"}`,
			check: func(t *testing.T, msg Message) {
				cmd := msg.(*SlideCommand)
				if cmd.Action != ActionNext {
					t.Fatalf("Action = %q, want next", cmd.Action)
				}
			},
		},
		{
			name:    "slide command goto",
			payload: `{"type":"slide_command","action":"goto","slideIndex":4}`,
			check: func(t *testing.T, msg Message) {
				cmd := msg.(*SlideCommand)
				if cmd.SlideIndex == nil || *cmd.SlideIndex != 4 {
					t.Fatalf("SlideIndex = %v, want 4", cmd.SlideIndex)
				}
			},
		},
		{
			name:    "slide command verb under command key",
			payload: `{"type":"slide_command","command":"prev"}`,
			check: func(t *testing.T, msg Message) {
				cmd := msg.(*SlideCommand)
				if cmd.Action != ActionPrev {
					t.Fatalf("Action = %q, want prev", cmd.Action)
				}
			},
		},
		{
			name:    "game command hint",
			payload: `{"type":"game_command","command":"hint"}`,
			check: func(t *testing.T, msg Message) {
				cmd := msg.(*GameCommand)
				if cmd.Command != ActionHint {
					t.Fatalf("Command = %q, want hint", cmd.Command)
				}
			},
		},
		{
			name:    "load slides infers count",
			payload: `{"type":"load_slides","contentId":"c1","slides":[{"index":0},{"index":1}]}`,
			check: func(t *testing.T, msg Message) {
				load := msg.(*LoadSlides)
				if load.SlideCount != 2 {
					t.Fatalf("SlideCount = %d, want 2", load.SlideCount)
				}
			},
		},
		{
			name:    "load game with inline data",
			payload: `{"type":"load_game","gameId":"g7","gameType":"word_order","gameData":{"items":[]}}`,
			check: func(t *testing.T, msg Message) {
				load := msg.(*LoadGame)
				if load.GameID != "g7" || len(load.GameData) == 0 {
					t.Fatalf("LoadGame = %+v, want gameId g7 with data", load)
				}
			},
		},
		{
			name:    "slides context",
			payload: `{"type":"slides_context","totalSlides":5,"currentIndex":2,"slides":[{"index":0,"type":"title"}]}`,
			check: func(t *testing.T, msg Message) {
				sc := msg.(*SlidesContext)
				if sc.CurrentIndex != 2 || sc.Slides[0].Type != SlideTitle {
					t.Fatalf("SlidesContext = %+v", sc)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.payload))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			tc.check(t, msg)
		})
	}
}

func TestDecodeUnknownTypeIsUnhandled(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"emoji_reaction","emoji":"🎉"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	unhandled, ok := msg.(*Unhandled)
	if !ok {
		t.Fatalf("decoded %T, want *Unhandled", msg)
	}
	if unhandled.Type != "emoji_reaction" {
		t.Fatalf("Type = %q, want emoji_reaction", unhandled.Type)
	}
	if len(unhandled.Raw) == 0 {
		t.Fatal("Raw payload should be preserved")
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"type":`},
		{"missing type", `{"action":"next"}`},
		{"slide goto without index", `{"type":"slide_command","action":"goto"}`},
		{"slide command unknown action", `{"type":"slide_command","action":"sideways"}`},
		{"game goto without index", `{"type":"game_command","command":"goto"}`},
		{"load presentation without id", `{"type":"load_presentation"}`},
		{"load slides empty", `{"type":"load_slides","contentId":"c1","slides":[]}`},
		{"load game without id", `{"type":"load_game"}`},
		{"screenshot without image", `{"type":"slide_screenshot","slideIndex":1}`},
		{"wrong field type", `{"type":"slide_changed","slideIndex":"three"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.payload))
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("err = %v, want *DecodeError", err)
			}
		})
	}
}

func TestRoundTripScreenshot(t *testing.T) {
	original := &SlideScreenshot{
		ImageBase64: "aGVsbG8=",
		SlideIndex:  3,
		SlideType:   SlideGrammar,
		Timestamp:   1756400000000,
	}
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	decoded := msg.(*SlideScreenshot)
	if *decoded != *original {
		t.Fatalf("round trip = %+v, want %+v", decoded, original)
	}
}

func TestBandForScore(t *testing.T) {
	cases := []struct {
		percent int
		want    ScoreBand
	}{
		{100, BandExcellent},
		{80, BandExcellent},
		{79, BandGood},
		{50, BandGood},
		{49, BandRetry},
		{0, BandRetry},
	}
	for _, tc := range cases {
		if got := BandForScore(tc.percent); got != tc.want {
			t.Fatalf("BandForScore(%d) = %q, want %q", tc.percent, got, tc.want)
		}
	}
}
