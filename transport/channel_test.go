// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestChannelRoundTrip establishes two Channels over an in-process
// signaler (loopback ICE, no STUN) and verifies messages flow both
// ways in order.
func TestChannelRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("loopback ICE establishment in -short mode")
	}

	signaler := NewMemorySignaler()
	avatar := NewChannel(signaler, "avatar", "student", ICEConfig{}, nil, testLogger())
	defer avatar.Close()
	student := NewChannel(signaler, "student", "avatar", ICEConfig{}, nil, testLogger())
	defer student.Close()

	var studentGot []string
	var mu sync.Mutex
	received := make(chan struct{}, 16)
	student.OnMessage(func(data []byte) {
		mu.Lock()
		studentGot = append(studentGot, string(data))
		mu.Unlock()
		received <- struct{}{}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, ch := range []*Channel{avatar, student} {
		wg.Add(1)
		go func(ch *Channel) {
			defer wg.Done()
			if err := ch.Connect(ctx); err != nil {
				errs <- err
			}
		}(ch)
	}
	wg.Wait()
	select {
	case err := <-errs:
		t.Fatalf("Connect: %v", err)
	default:
	}

	for _, payload := range []string{"one", "two", "three"} {
		if err := avatar.Send([]byte(payload)); err != nil {
			t.Fatalf("Send(%q): %v", payload, err)
		}
	}

	deadline := time.After(10 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-deadline:
			t.Fatal("timed out waiting for messages")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(studentGot) != 3 || studentGot[0] != "one" || studentGot[2] != "three" {
		t.Fatalf("received %v, want [one two three] in order", studentGot)
	}
}

func TestSendBeforeConnect(t *testing.T) {
	channel := NewChannel(NewMemorySignaler(), "a", "b", ICEConfig{}, nil, testLogger())
	defer channel.Close()

	err := channel.Send([]byte("early"))
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("err = %v, want *SendError", err)
	}
}

func TestSendAfterClose(t *testing.T) {
	channel := NewChannel(NewMemorySignaler(), "a", "b", ICEConfig{}, nil, testLogger())
	channel.Close()

	err := channel.Send([]byte("late"))
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed inside", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	channel := NewChannel(NewMemorySignaler(), "a", "b", ICEConfig{}, nil, testLogger())
	for i := 0; i < 3; i++ {
		if err := channel.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
}

func TestConnectAfterCloseFails(t *testing.T) {
	channel := NewChannel(NewMemorySignaler(), "a", "b", ICEConfig{}, nil, testLogger())
	channel.Close()
	if err := channel.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestOnMessageReplacesHandler(t *testing.T) {
	channel := NewChannel(NewMemorySignaler(), "a", "b", ICEConfig{}, nil, testLogger())
	defer channel.Close()

	var firstCalls, secondCalls int
	channel.OnMessage(func([]byte) { firstCalls++ })
	channel.OnMessage(func([]byte) { secondCalls++ })

	channel.mu.Lock()
	handler := channel.messageHandler
	channel.mu.Unlock()
	handler([]byte("x"))

	if firstCalls != 0 || secondCalls != 1 {
		t.Fatalf("calls = %d/%d, want 0/1 (no double dispatch)", firstCalls, secondCalls)
	}
}
