// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var _ Signaler = (*HTTPSignaler)(nil)

// HTTPSignaler exchanges session descriptions through the room
// provisioning service's signaling endpoints:
//
//	POST {base}/offers   {"from": ..., "to": ..., "sdp": ...}
//	POST {base}/answers  {"from": ..., "to": ..., "sdp": ...}
//	GET  {base}/offers?participant=NAME
//	GET  {base}/answers?participant=NAME
//
// The service is expected to deliver each stored description at most
// once per poll, matching the Signaler contract.
type HTTPSignaler struct {
	base   string
	client *http.Client
}

// NewHTTPSignaler returns a signaler talking to the service at base.
func NewHTTPSignaler(base string) *HTTPSignaler {
	return &HTTPSignaler{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// signalPayload is the wire form for published descriptions.
type signalPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
	SDP  string `json:"sdp"`
}

// PublishOffer implements Signaler.
func (s *HTTPSignaler) PublishOffer(ctx context.Context, participant, target, sdp string) error {
	return s.post(ctx, "offers", signalPayload{From: participant, To: target, SDP: sdp})
}

// PublishAnswer implements Signaler.
func (s *HTTPSignaler) PublishAnswer(ctx context.Context, offerer, participant, sdp string) error {
	return s.post(ctx, "answers", signalPayload{From: participant, To: offerer, SDP: sdp})
}

// PollOffers implements Signaler.
func (s *HTTPSignaler) PollOffers(ctx context.Context, participant string) ([]SignalMessage, error) {
	return s.poll(ctx, "offers", participant)
}

// PollAnswers implements Signaler.
func (s *HTTPSignaler) PollAnswers(ctx context.Context, participant string) ([]SignalMessage, error) {
	return s.poll(ctx, "answers", participant)
}

func (s *HTTPSignaler) post(ctx context.Context, kind string, payload signalPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encoding %s: %w", kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/"+kind, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: building %s request: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: publishing %s: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("transport: publishing %s: status %d", kind, resp.StatusCode)
	}
	return nil
}

func (s *HTTPSignaler) poll(ctx context.Context, kind, participant string) ([]SignalMessage, error) {
	target := fmt.Sprintf("%s/%s?participant=%s", s.base, kind, url.QueryEscape(participant))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: building %s poll: %w", kind, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: polling %s: %w", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: polling %s: status %d", kind, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: reading %s poll: %w", kind, err)
	}
	var payloads []signalPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("transport: decoding %s poll: %w", kind, err)
	}

	messages := make([]SignalMessage, len(payloads))
	for i, p := range payloads {
		messages[i] = SignalMessage{Peer: p.From, SDP: p.SDP}
	}
	return messages, nil
}
