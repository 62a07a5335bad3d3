// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"testing"
)

func TestMemorySignalerOfferRouting(t *testing.T) {
	signaler := NewMemorySignaler()
	ctx := context.Background()

	if err := signaler.PublishOffer(ctx, "avatar", "student", "sdp-offer"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}

	offers, err := signaler.PollOffers(ctx, "student")
	if err != nil {
		t.Fatalf("PollOffers: %v", err)
	}
	if len(offers) != 1 || offers[0].Peer != "avatar" || offers[0].SDP != "sdp-offer" {
		t.Fatalf("offers = %+v", offers)
	}

	// The offer is not directed at the offerer.
	offers, err = signaler.PollOffers(ctx, "avatar")
	if err != nil {
		t.Fatalf("PollOffers: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("offerer saw its own offer: %+v", offers)
	}
}

func TestMemorySignalerDeliversOnce(t *testing.T) {
	signaler := NewMemorySignaler()
	ctx := context.Background()

	if err := signaler.PublishOffer(ctx, "avatar", "student", "sdp-1"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	first, _ := signaler.PollOffers(ctx, "student")
	second, _ := signaler.PollOffers(ctx, "student")
	if len(first) != 1 || len(second) != 0 {
		t.Fatalf("polls = %d then %d, want 1 then 0", len(first), len(second))
	}

	// Republishing makes the offer visible again (reconnect case).
	if err := signaler.PublishOffer(ctx, "avatar", "student", "sdp-2"); err != nil {
		t.Fatalf("PublishOffer: %v", err)
	}
	third, _ := signaler.PollOffers(ctx, "student")
	if len(third) != 1 || third[0].SDP != "sdp-2" {
		t.Fatalf("republished offer not delivered: %+v", third)
	}
}

func TestMemorySignalerAnswerRouting(t *testing.T) {
	signaler := NewMemorySignaler()
	ctx := context.Background()

	if err := signaler.PublishAnswer(ctx, "avatar", "student", "sdp-answer"); err != nil {
		t.Fatalf("PublishAnswer: %v", err)
	}

	// Answers go back to the offerer.
	answers, err := signaler.PollAnswers(ctx, "avatar")
	if err != nil {
		t.Fatalf("PollAnswers: %v", err)
	}
	if len(answers) != 1 || answers[0].Peer != "student" {
		t.Fatalf("answers = %+v", answers)
	}

	answers, _ = signaler.PollAnswers(ctx, "student")
	if len(answers) != 0 {
		t.Fatalf("answerer saw its own answer: %+v", answers)
	}
}
