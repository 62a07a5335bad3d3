// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/podium-foundation/podium/lib/clock"
	"github.com/podium-foundation/podium/protocol"
)

// DefaultSettleDelay is how long the pipeline waits after a confirmed
// index change before rasterizing, so the new unit finishes rendering.
const DefaultSettleDelay = 400 * time.Millisecond

// PublishFunc delivers one capture result message over the data
// channel. Errors are the sender's to log; the pipeline does not
// retry.
type PublishFunc func(protocol.Message) error

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	MaxWidth    int
	Quality     int
	SettleDelay time.Duration
	HTTPClient  *http.Client
}

// Pipeline captures the active teaching unit and relays it for vision
// input. Captures run off the dispatch path; completions publish
// asynchronously. A pending capture superseded by newer navigation
// still completes and publishes under the index it was issued for.
type Pipeline struct {
	publish PublishFunc
	clock   clock.Clock
	logger  *slog.Logger

	maxWidth    int
	quality     int
	settleDelay time.Duration
	client      *http.Client
	renderer    *markupRenderer

	mu      sync.Mutex
	pending map[int]*clock.Timer
	nextID  int
	closed  bool
}

// New creates a Pipeline publishing through publish. A nil clock means
// real time; a nil logger discards output.
func New(publish PublishFunc, clk clock.Clock, logger *slog.Logger, opts Options) *Pipeline {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pipeline := &Pipeline{
		publish:     publish,
		clock:       clk,
		logger:      logger,
		maxWidth:    opts.MaxWidth,
		quality:     opts.Quality,
		settleDelay: opts.SettleDelay,
		client:      opts.HTTPClient,
		renderer:    newMarkupRenderer(),
		pending:     make(map[int]*clock.Timer),
	}
	if pipeline.maxWidth <= 0 {
		pipeline.maxWidth = DefaultMaxWidth
	}
	if pipeline.quality <= 0 {
		pipeline.quality = DefaultQuality
	}
	if pipeline.settleDelay <= 0 {
		pipeline.settleDelay = DefaultSettleDelay
	}
	if pipeline.client == nil {
		pipeline.client = &http.Client{}
	}
	return pipeline
}

// CaptureMount captures the unit immediately (no settle delay). Called
// once when a content unit first becomes visible.
func (p *Pipeline) CaptureMount(unit protocol.SlideInfo) {
	if p.isClosed() {
		return
	}
	go p.capture(unit)
}

// CaptureChange schedules a capture after the settle delay. Called
// once per confirmed index change. The unit is resolved by the caller
// at request time; the capture never consults ambient "current index"
// state at completion.
func (p *Pipeline) CaptureChange(unit protocol.SlideInfo) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	id := p.nextID
	p.nextID++
	// The entry is removed when the timer fires so the pending set
	// stays bounded by in-flight settles, not session length.
	p.pending[id] = p.clock.AfterFunc(p.settleDelay, func() {
		p.mu.Lock()
		delete(p.pending, id)
		p.mu.Unlock()
		go p.capture(unit)
	})
	p.mu.Unlock()
}

// Close stops pending settle timers. In-flight captures complete
// harmlessly (their publish fails against a closed channel and is
// logged by the sender).
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for id, timer := range p.pending {
		timer.Stop()
		delete(p.pending, id)
	}
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// capture rasterizes one unit and publishes the result. All failures
// are non-fatal: log, skip (or fall back to URL relay for image
// content), never block navigation.
func (p *Pipeline) capture(unit protocol.SlideInfo) {
	timestamp := p.clock.Now().UnixMilli()

	if unit.ImageURL != "" {
		p.captureImage(unit, timestamp)
		return
	}
	p.captureMarkup(unit, timestamp)
}

// captureImage fetches a pre-rendered slide image. A failed fetch
// relays the URL instead so the receiver can load it independently.
func (p *Pipeline) captureImage(unit protocol.SlideInfo, timestamp int64) {
	img, err := fetchImage(context.Background(), p.client, unit.ImageURL)
	if err != nil {
		captureErr := &CaptureError{Stage: "fetch", SlideIndex: unit.Index, Err: err}
		p.logger.Warn("image capture failed, relaying url", "error", captureErr)
		p.send(&protocol.SlideURL{
			URL:        unit.ImageURL,
			SlideIndex: unit.Index,
			Timestamp:  timestamp,
		})
		return
	}

	encoded, err := encodeBounded(img, p.maxWidth, p.quality)
	if err != nil {
		captureErr := &CaptureError{Stage: "encode", SlideIndex: unit.Index, Err: err}
		p.logger.Warn("image capture failed, relaying url", "error", captureErr)
		p.send(&protocol.SlideURL{
			URL:        unit.ImageURL,
			SlideIndex: unit.Index,
			Timestamp:  timestamp,
		})
		return
	}

	p.send(&protocol.SlideScreenshot{
		ImageBase64: encoded,
		SlideIndex:  unit.Index,
		SlideType:   unit.Type,
		Timestamp:   timestamp,
	})
}

// captureMarkup rasterizes a markup slide. There is no URL to fall
// back to; a failure skips the notification.
func (p *Pipeline) captureMarkup(unit protocol.SlideInfo, timestamp int64) {
	img, err := p.renderer.render(unit.Title, unit.Markup)
	if err != nil {
		p.logger.Warn("markup capture skipped",
			"error", &CaptureError{Stage: "render", SlideIndex: unit.Index, Err: err})
		return
	}

	encoded, err := encodeBounded(img, p.maxWidth, p.quality)
	if err != nil {
		p.logger.Warn("markup capture skipped",
			"error", &CaptureError{Stage: "encode", SlideIndex: unit.Index, Err: err})
		return
	}

	p.send(&protocol.SlideScreenshot{
		ImageBase64: encoded,
		SlideIndex:  unit.Index,
		SlideType:   unit.Type,
		Timestamp:   timestamp,
	})
}

func (p *Pipeline) send(msg protocol.Message) {
	if err := p.publish(msg); err != nil {
		p.logger.Warn("capture publish failed", "type", protocol.MessageType(msg), "error", err)
	}
}
