// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeError reports a payload that could not be decoded as a
// data-channel message. Callers log and drop the payload; a decode
// failure never terminates the session.
type DecodeError struct {
	// Reason describes what was wrong with the payload.
	Reason string
	// Err is the underlying JSON error, if any.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// envelope is the minimal shape every wire message shares.
type envelope struct {
	Type string `json:"type"`
}

// Encode serializes msg with its type discriminator injected into the
// JSON object. Unhandled messages cannot be encoded — they exist only
// as a decode outcome.
func Encode(msg Message) ([]byte, error) {
	wireType := msg.messageType()
	if wireType == TypeUnhandled {
		return nil, fmt.Errorf("protocol: cannot encode an unhandled message")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encoding %s: %w", wireType, err)
	}

	// Splice the discriminator into the marshaled object rather than
	// carrying a mutable Type field on every struct.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("protocol: encoding %s: %w", wireType, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	typeValue, _ := json.Marshal(string(wireType))
	fields["type"] = typeValue
	return json.Marshal(fields)
}

// Decode parses one data-channel payload. Malformed JSON, a missing
// type field, or a payload that fails variant validation returns a
// *DecodeError. A well-formed payload with an unknown type returns
// *Unhandled, never an error, so forward-incompatible peers degrade to
// log-and-skip.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Reason: "malformed payload", Err: err}
	}
	if env.Type == "" {
		return nil, &DecodeError{Reason: "missing type field"}
	}

	msg := newMessage(Type(env.Type))
	if msg == nil {
		return &Unhandled{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid %s payload", env.Type), Err: err}
	}
	if err := validate(msg, data); err != nil {
		return nil, err
	}
	return msg, nil
}

// newMessage returns a zero value of the variant for wireType, or nil
// for unknown types.
func newMessage(wireType Type) Message {
	switch wireType {
	case TypeSlideCommand:
		return &SlideCommand{}
	case TypeStartPresentation:
		return &StartPresentation{}
	case TypeEndPresentation:
		return &EndPresentation{}
	case TypeLoadPresentation:
		return &LoadPresentation{}
	case TypeLoadSlides:
		return &LoadSlides{}
	case TypeSlideChanged:
		return &SlideChanged{}
	case TypePresentationReady:
		return &PresentationReady{}
	case TypeSlideScreenshot:
		return &SlideScreenshot{}
	case TypeSlideURL:
		return &SlideURL{}
	case TypeSlidesContext:
		return &SlidesContext{}
	case TypeLoadGame:
		return &LoadGame{}
	case TypeGameCommand:
		return &GameCommand{}
	case TypeGameLoaded:
		return &GameLoaded{}
	case TypeGameState:
		return &GameState{}
	case TypeGameComplete:
		return &GameComplete{}
	case TypeItemChecked:
		return &ItemChecked{}
	}
	return nil
}

// commandAlias mirrors senders that put the navigation verb under
// "command" (slide commands) or "action" (game commands) instead of
// the canonical key.
type commandAlias struct {
	Action  NavAction `json:"action"`
	Command NavAction `json:"command"`
}

// validate applies per-variant field checks after unmarshaling.
func validate(msg Message, data []byte) error {
	switch m := msg.(type) {
	case *SlideCommand:
		if m.Action == "" {
			var alias commandAlias
			if err := json.Unmarshal(data, &alias); err == nil && alias.Command != "" {
				m.Action = alias.Command
			}
		}
		switch m.Action {
		case ActionNext, ActionPrev:
		case ActionGoto:
			if m.SlideIndex == nil {
				return &DecodeError{Reason: "slide_command goto without slideIndex"}
			}
		default:
			return &DecodeError{Reason: fmt.Sprintf("slide_command with unknown action %q", m.Action)}
		}

	case *GameCommand:
		if m.Command == "" {
			var alias commandAlias
			if err := json.Unmarshal(data, &alias); err == nil && alias.Action != "" {
				m.Command = alias.Action
			}
		}
		switch m.Command {
		case ActionNext, ActionPrev, ActionHint:
		case ActionGoto:
			if m.ItemIndex == nil {
				return &DecodeError{Reason: "game_command goto without itemIndex"}
			}
		default:
			return &DecodeError{Reason: fmt.Sprintf("game_command with unknown command %q", m.Command)}
		}

	case *LoadPresentation:
		if m.PresentationID == "" {
			return &DecodeError{Reason: "load_presentation without presentationId"}
		}

	case *LoadSlides:
		if m.SlideCount == 0 && len(m.Slides) > 0 {
			m.SlideCount = len(m.Slides)
		}
		if m.SlideCount <= 0 {
			return &DecodeError{Reason: "load_slides without slides"}
		}

	case *LoadGame:
		if m.GameID == "" {
			return &DecodeError{Reason: "load_game without gameId"}
		}

	case *SlideScreenshot:
		if m.ImageBase64 == "" {
			return &DecodeError{Reason: "slide_screenshot without image data"}
		}

	case *SlideURL:
		if m.URL == "" {
			return &DecodeError{Reason: "slide_url without url"}
		}
	}
	return nil
}
