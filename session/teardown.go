// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// beaconTimeout bounds the cleanup notification. Teardown must never
// block on a slow backend; a lost beacon is acceptable, a hung
// shutdown is not.
const beaconTimeout = 2 * time.Second

// Beacon posts a fire-and-forget session-cleanup notification to the
// backend when a session ends. The zero URL disables it.
type Beacon struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewBeacon returns a beacon posting to url. An empty url returns a
// beacon whose Fire is a no-op. A nil logger discards output.
func NewBeacon(url string, logger *slog.Logger) *Beacon {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Beacon{
		url:    url,
		client: &http.Client{Timeout: beaconTimeout},
		logger: logger,
	}
}

// Fire notifies the backend that roomID's session ended for the given
// reason. It runs in the background and never reports failure to the
// caller; delivery is best effort.
func (b *Beacon) Fire(roomID, reason string) {
	if b == nil || b.url == "" {
		return
	}
	body, err := json.Marshal(map[string]string{
		"roomId": roomID,
		"reason": reason,
	})
	if err != nil {
		b.logger.Warn("cleanup beacon marshal failed", "error", err)
		return
	}
	go func() {
		resp, err := b.client.Post(b.url, "application/json", bytes.NewReader(body))
		if err != nil {
			b.logger.Warn("cleanup beacon failed", "room", roomID, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			b.logger.Warn("cleanup beacon rejected",
				"room", roomID,
				"status", fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
		}
	}()
}
