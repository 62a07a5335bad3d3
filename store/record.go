// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// Controller identifies which participant may drive navigation.
type Controller string

const (
	// ControllerAvatar gives navigation to the AI participant; local
	// student input is advisory only.
	ControllerAvatar Controller = "avatar"
	// ControllerStudent gives navigation to the human participant.
	ControllerStudent Controller = "student"
	// ControllerShared accepts navigation from both sides.
	ControllerShared Controller = "shared"
)

// Valid reports whether c is one of the known controllers.
func (c Controller) Valid() bool {
	switch c {
	case ControllerAvatar, ControllerStudent, ControllerShared:
		return true
	}
	return false
}

// PresentationMode is the persisted presentation sub-record.
type PresentationMode struct {
	// Active is true while a presentation is being taught.
	Active bool

	// PresentationID names the loaded presentation. Empty when no
	// presentation has ever been started in this session.
	PresentationID string

	// CurrentSlideIndex is the authoritative slide position.
	CurrentSlideIndex int

	// ControlledBy says who may drive navigation.
	ControlledBy Controller

	// UpdatedBy records which participant wrote the current slide
	// index, for diagnostics.
	UpdatedBy string
}

// TeachingSession is the durable record of one live room instance.
type TeachingSession struct {
	// ID is the record's unique identifier.
	ID string

	// RoomID identifies the shared video room.
	RoomID string

	// CreatedAt is when the room was provisioned.
	CreatedAt time.Time

	// TargetDurationMinutes is the planned lesson length; zero means
	// open-ended.
	TargetDurationMinutes int

	// WrapUpBufferMinutes is how long before the target the lesson
	// should start wrapping up.
	WrapUpBufferMinutes int

	// PresentationID optionally links a stored presentation.
	PresentationID string

	// LessonID optionally links a structured lesson plan.
	LessonID string

	// Presentation is the embedded presentation mode sub-record.
	Presentation PresentationMode

	// EndedAt is when the session was marked ended; zero while live.
	EndedAt time.Time

	// EndReason records why the session ended (participant_left,
	// lesson_complete, page_unload). Empty while live.
	EndReason string
}

// Ended reports whether the session has been marked ended.
func (s *TeachingSession) Ended() bool { return !s.EndedAt.IsZero() }

// Session end reasons.
const (
	EndReasonParticipantLeft = "participant_left"
	EndReasonLessonComplete  = "lesson_complete"
	EndReasonPageUnload      = "page_unload"
)
