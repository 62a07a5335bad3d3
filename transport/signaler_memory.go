// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"strings"
	"sync"
)

// Compile-time interface check.
var _ Signaler = (*MemorySignaler)(nil)

// MemorySignaler is an in-process Signaler. Two Channels sharing one
// MemorySignaler can establish a PeerConnection without any network
// signaling, which is how tests wire a full local session.
type MemorySignaler struct {
	mu       sync.Mutex
	offers   map[string]SignalMessage // key: "offerer|target"
	answers  map[string]SignalMessage // key: "offerer|answerer"
	consumed map[string]int           // key: "<kind>:<consumer>:<pair>" → generation seen
	// generation bumps on every publish so republished SDPs (after a
	// reconnect) are delivered again.
	generations map[string]int
}

const signalSeparator = "|"

// NewMemorySignaler creates an empty in-process signaler.
func NewMemorySignaler() *MemorySignaler {
	return &MemorySignaler{
		offers:      make(map[string]SignalMessage),
		answers:     make(map[string]SignalMessage),
		consumed:    make(map[string]int),
		generations: make(map[string]int),
	}
}

func (s *MemorySignaler) PublishOffer(_ context.Context, participant, target, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participant + signalSeparator + target
	s.offers[key] = SignalMessage{Peer: participant, SDP: sdp}
	s.generations["offer:"+key]++
	return nil
}

func (s *MemorySignaler) PublishAnswer(_ context.Context, offerer, participant, sdp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := offerer + signalSeparator + participant
	s.answers[key] = SignalMessage{Peer: participant, SDP: sdp}
	s.generations["answer:"+key]++
	return nil
}

func (s *MemorySignaler) PollOffers(_ context.Context, participant string) ([]SignalMessage, error) {
	// Offers for this participant have keys ending "|participant".
	return s.poll("offer", participant, s.offers, func(key string) bool {
		return strings.HasSuffix(key, signalSeparator+participant)
	}), nil
}

func (s *MemorySignaler) PollAnswers(_ context.Context, participant string) ([]SignalMessage, error) {
	// Answers to this participant's offers have keys starting
	// "participant|".
	return s.poll("answer", participant, s.answers, func(key string) bool {
		return strings.HasPrefix(key, participant+signalSeparator)
	}), nil
}

// poll returns matching messages not yet delivered to this consumer at
// the current publish generation.
func (s *MemorySignaler) poll(kind, consumer string, messages map[string]SignalMessage, match func(string) bool) []SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []SignalMessage
	for key, msg := range messages {
		if !match(key) {
			continue
		}
		generation := s.generations[kind+":"+key]
		seenKey := kind + ":" + consumer + ":" + key
		if s.consumed[seenKey] >= generation {
			continue
		}
		s.consumed[seenKey] = generation
		result = append(result, msg)
	}
	return result
}
