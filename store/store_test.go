// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/podium-foundation/podium/lib/clock"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	s, err := Open(filepath.Join(t.TempDir(), "sessions.db"), clk, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clk
}

func TestCreateAndLoadSession(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSession(ctx, "room-1", CreateOptions{
		TargetDurationMinutes: 10,
		WrapUpBufferMinutes:   2,
		PresentationID:        "pres-1",
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID == "" {
		t.Fatal("session id should be assigned")
	}

	loaded, err := s.SessionForRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("SessionForRoom: %v", err)
	}
	if loaded.ID != created.ID {
		t.Fatalf("loaded id %q, want %q", loaded.ID, created.ID)
	}
	if !loaded.CreatedAt.Equal(epoch) {
		t.Fatalf("CreatedAt = %v, want %v", loaded.CreatedAt, epoch)
	}
	if loaded.TargetDurationMinutes != 10 || loaded.WrapUpBufferMinutes != 2 {
		t.Fatalf("timing fields = %d/%d, want 10/2",
			loaded.TargetDurationMinutes, loaded.WrapUpBufferMinutes)
	}
	if loaded.Presentation.Active {
		t.Fatal("presentation should start inactive")
	}
	if loaded.Presentation.ControlledBy != ControllerShared {
		t.Fatalf("ControlledBy = %q, want shared", loaded.Presentation.ControlledBy)
	}
}

func TestPresentationModeLifecycle(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSession(ctx, "room-1", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.StartPresentationMode(ctx, created.ID, "pres-9", ControllerAvatar); err != nil {
		t.Fatalf("StartPresentationMode: %v", err)
	}
	if err := s.UpdateSlideIndex(ctx, created.ID, 3, "avatar"); err != nil {
		t.Fatalf("UpdateSlideIndex: %v", err)
	}

	loaded, err := s.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	mode := loaded.Presentation
	if !mode.Active || mode.PresentationID != "pres-9" || mode.CurrentSlideIndex != 3 {
		t.Fatalf("mode after update = %+v", mode)
	}
	if mode.ControlledBy != ControllerAvatar || mode.UpdatedBy != "avatar" {
		t.Fatalf("controller fields = %+v", mode)
	}

	if err := s.EndPresentationMode(ctx, created.ID); err != nil {
		t.Fatalf("EndPresentationMode: %v", err)
	}
	loaded, err = s.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if loaded.Presentation.Active {
		t.Fatal("presentation should be inactive after end")
	}
	if loaded.Presentation.CurrentSlideIndex != 3 {
		t.Fatalf("slide index lost on end: %d, want 3", loaded.Presentation.CurrentSlideIndex)
	}
}

func TestUpdateUnknownSessionIsNotFound(t *testing.T) {
	s, _ := openTestStore(t)

	err := s.UpdateSlideIndex(context.Background(), "nope", 1, "student")
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound inside", err)
	}
}

func TestInvalidWrites(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateSession(ctx, "room-1", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.UpdateSlideIndex(ctx, created.ID, -1, "student"); err == nil {
		t.Fatal("negative slide index should be rejected")
	}
	if err := s.StartPresentationMode(ctx, created.ID, "p", Controller("nobody")); err == nil {
		t.Fatal("unknown controller should be rejected")
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	s, clk := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateSession(ctx, "room-1", CreateOptions{}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := s.EndSession(ctx, "room-1", EndReasonParticipantLeft); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	firstEnd := clk.Now()
	clk.Advance(time.Minute)
	if err := s.EndSession(ctx, "room-1", EndReasonPageUnload); err != nil {
		t.Fatalf("second EndSession: %v", err)
	}

	loaded, err := s.SessionForRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("SessionForRoom: %v", err)
	}
	if !loaded.Ended() {
		t.Fatal("session should be ended")
	}
	if loaded.EndReason != EndReasonParticipantLeft {
		t.Fatalf("EndReason = %q, want the first reason", loaded.EndReason)
	}
	if !loaded.EndedAt.Equal(firstEnd) {
		t.Fatalf("EndedAt = %v, want %v", loaded.EndedAt, firstEnd)
	}
}

func TestWatcherSeesChanges(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateSession(ctx, "room-1", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := s.Watch(created.ID)
	defer w.Close()

	if err := s.UpdateSlideIndex(ctx, created.ID, 2, "avatar"); err != nil {
		t.Fatalf("UpdateSlideIndex: %v", err)
	}

	select {
	case record := <-w.Updates():
		if record.Presentation.CurrentSlideIndex != 2 {
			t.Fatalf("watched index = %d, want 2", record.Presentation.CurrentSlideIndex)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not receive the update")
	}
}

func TestWatcherCoalescesBursts(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateSession(ctx, "room-1", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := s.Watch(created.ID)
	defer w.Close()

	for index := 1; index <= 5; index++ {
		if err := s.UpdateSlideIndex(ctx, created.ID, index, "avatar"); err != nil {
			t.Fatalf("UpdateSlideIndex(%d): %v", index, err)
		}
	}

	record := <-w.Updates()
	if record.Presentation.CurrentSlideIndex != 5 {
		t.Fatalf("coalesced index = %d, want the newest (5)", record.Presentation.CurrentSlideIndex)
	}
	select {
	case record = <-w.Updates():
		t.Fatalf("unexpected second update: %+v", record.Presentation)
	default:
	}
}

func TestClosedWatcherStopsReceiving(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	created, err := s.CreateSession(ctx, "room-1", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := s.Watch(created.ID)
	w.Close()

	if err := s.UpdateSlideIndex(ctx, created.ID, 1, "avatar"); err != nil {
		t.Fatalf("UpdateSlideIndex: %v", err)
	}
	select {
	case <-w.Updates():
		t.Fatal("closed watcher received an update")
	default:
	}
}
