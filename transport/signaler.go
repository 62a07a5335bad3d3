// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "context"

// Signaler abstracts the mechanism for exchanging WebRTC session
// descriptions between the two participants. The production deployment
// signals through the room provisioning service; tests and
// same-process sessions use [MemorySignaler].
//
// The model is vanilla ICE: the SDP published here already contains
// every gathered candidate, so one offer/answer round-trip is enough.
type Signaler interface {
	// PublishOffer stores a complete SDP offer from participant to
	// target, replacing any previous offer for that pair.
	PublishOffer(ctx context.Context, participant, target, sdp string) error

	// PublishAnswer stores a complete SDP answer for a previously
	// published offer. Keyed by the same (offerer, answerer) pair.
	PublishAnswer(ctx context.Context, offerer, participant, sdp string) error

	// PollOffers returns pending offers directed at participant that
	// have not been returned before.
	PollOffers(ctx context.Context, participant string) ([]SignalMessage, error)

	// PollAnswers returns pending answers to offers originated by
	// participant that have not been returned before.
	PollAnswers(ctx context.Context, participant string) ([]SignalMessage, error)
}

// SignalMessage is one signaling payload (offer or answer).
type SignalMessage struct {
	// Peer is the other party: the offerer for received offers, the
	// answerer for received answers.
	Peer string

	// SDP is the complete session description with all ICE candidates
	// embedded.
	SDP string
}
