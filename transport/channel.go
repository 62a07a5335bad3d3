// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/podium-foundation/podium/lib/clock"
)

// iceGatherTimeout is the maximum time to wait for ICE candidate
// gathering to complete before publishing the SDP.
const iceGatherTimeout = 15 * time.Second

// signalPollInterval is how often offers and answers are polled during
// connection establishment.
const signalPollInterval = 500 * time.Millisecond

// connectTimeout is the maximum time Connect waits for the
// PeerConnection to reach the Connected state and the data channel to
// open.
const connectTimeout = 30 * time.Second

// channelLabel names the single data channel the session uses.
const channelLabel = "session-sync"

// Channel is the two-party data channel between the local participant
// and its single peer. Create with NewChannel, establish with Connect,
// then Send and OnMessage carry protocol payloads. Close is idempotent
// and releases the PeerConnection.
type Channel struct {
	signaler Signaler
	local    string
	peer     string
	clock    clock.Clock
	logger   *slog.Logger

	// iceConfig may be refreshed between reconnects (TURN credentials
	// are time-limited).
	configMu  sync.RWMutex
	iceConfig ICEConfig

	mu                sync.Mutex
	pc                *webrtc.PeerConnection
	dc                *webrtc.DataChannel
	messageHandler    func([]byte)
	disconnectHandler func(reason string)
	disconnected      bool // disconnect already reported for this connection

	established chan struct{}
	opened      chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel from the local participant to peer.
// Both sides must use the same pair of names; the lexicographically
// smaller name is the offerer. A nil logger discards output; a nil
// clock means real time.
func NewChannel(signaler Signaler, local, peer string, iceConfig ICEConfig, clk clock.Clock, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Channel{
		signaler:    signaler,
		local:       local,
		peer:        peer,
		iceConfig:   iceConfig,
		clock:       clk,
		logger:      logger,
		established: make(chan struct{}),
		opened:      make(chan struct{}),
		closed:      make(chan struct{}),
	}
}

// UpdateICEConfig replaces the ICE configuration used by the next
// connection attempt. The current PeerConnection keeps its config.
func (c *Channel) UpdateICEConfig(cfg ICEConfig) {
	c.configMu.Lock()
	defer c.configMu.Unlock()
	c.iceConfig = cfg
}

// OnMessage registers the inbound dispatcher. Registration is
// idempotent: registering again (for example across reconnects)
// replaces the previous handler, it never double-dispatches. The
// handler runs sequentially — pion delivers data channel messages for
// one channel in order on one goroutine.
func (c *Channel) OnMessage(handler func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messageHandler = handler
}

// OnDisconnect registers the handler invoked once when the transport
// loses the peer (ICE failure or remote close). Not invoked for a
// local Close.
func (c *Channel) OnDisconnect(handler func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// Send serializes nothing and retries nothing: it hands one encoded
// message to the data channel. If the channel is not open the message
// is dropped with a *SendError; the caller logs and continues.
func (c *Channel) Send(data []byte) error {
	select {
	case <-c.closed:
		return &SendError{Reason: "channel closed", Err: ErrClosed}
	default:
	}

	c.mu.Lock()
	dataChannel := c.dc
	c.mu.Unlock()

	if dataChannel == nil {
		return &SendError{Reason: "not connected"}
	}
	if dataChannel.ReadyState() != webrtc.DataChannelStateOpen {
		return &SendError{Reason: fmt.Sprintf("data channel %s", dataChannel.ReadyState())}
	}
	if err := dataChannel.Send(data); err != nil {
		return &SendError{Reason: "data channel write", Err: err}
	}
	return nil
}

// Connect establishes the PeerConnection and the session data channel.
// The offerer role is decided by name comparison, so both sides can
// call Connect concurrently without a glare race. Blocks until the
// data channel is open, ctx is done, or the attempt times out.
func (c *Channel) Connect(ctx context.Context) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	var err error
	if c.local < c.peer {
		err = c.connectAsOfferer(ctx)
	} else {
		err = c.connectAsAnswerer(ctx)
	}
	if err != nil {
		c.teardownConnection()
		return err
	}

	// Wait for ICE connectivity and the open data channel.
	c.mu.Lock()
	established, opened := c.established, c.opened
	c.mu.Unlock()

	select {
	case <-established:
	case <-ctx.Done():
		c.teardownConnection()
		return fmt.Errorf("transport: waiting for peer connection: %w", ctx.Err())
	case <-c.closed:
		return ErrClosed
	}
	select {
	case <-opened:
	case <-ctx.Done():
		c.teardownConnection()
		return fmt.Errorf("transport: waiting for data channel: %w", ctx.Err())
	case <-c.closed:
		return ErrClosed
	}

	c.logger.Info("data channel connected", "local", c.local, "peer", c.peer)
	return nil
}

// connectAsOfferer creates the data channel, publishes a complete SDP
// offer, and applies the peer's answer.
func (c *Channel) connectAsOfferer(ctx context.Context) error {
	pc, err := c.newPeerConnection()
	if err != nil {
		return err
	}

	dataChannel, err := pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{
		Ordered: ptr(true),
	})
	if err != nil {
		pc.Close()
		return fmt.Errorf("transport: creating data channel: %w", err)
	}
	c.adoptDataChannel(dataChannel)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("transport: creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("transport: setting local description: %w", err)
	}
	if err := c.waitGathering(ctx, gatherComplete); err != nil {
		return err
	}

	if err := c.signaler.PublishOffer(ctx, c.local, c.peer, pc.LocalDescription().SDP); err != nil {
		return fmt.Errorf("transport: publishing SDP offer: %w", err)
	}
	c.logger.Info("offer published", "peer", c.peer)

	answer, err := c.pollSignal(ctx, c.signaler.PollAnswers)
	if err != nil {
		return fmt.Errorf("transport: waiting for SDP answer from %s: %w", c.peer, err)
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fmt.Errorf("transport: setting remote description: %w", err)
	}
	return nil
}

// connectAsAnswerer waits for the peer's offer and answers it. The
// peer creates the data channel; it arrives via OnDataChannel.
func (c *Channel) connectAsAnswerer(ctx context.Context) error {
	offer, err := c.pollSignal(ctx, c.signaler.PollOffers)
	if err != nil {
		return fmt.Errorf("transport: waiting for SDP offer from %s: %w", c.peer, err)
	}

	pc, err := c.newPeerConnection()
	if err != nil {
		return err
	}

	pc.OnDataChannel(func(dataChannel *webrtc.DataChannel) {
		if dataChannel.Label() != channelLabel {
			c.logger.Warn("ignoring unexpected data channel", "label", dataChannel.Label())
			return
		}
		c.adoptDataChannel(dataChannel)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return fmt.Errorf("transport: setting remote description: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("transport: creating SDP answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("transport: setting local description: %w", err)
	}
	if err := c.waitGathering(ctx, gatherComplete); err != nil {
		return err
	}

	if err := c.signaler.PublishAnswer(ctx, c.peer, c.local, pc.LocalDescription().SDP); err != nil {
		return fmt.Errorf("transport: publishing SDP answer: %w", err)
	}
	c.logger.Info("answer published", "peer", c.peer)
	return nil
}

// Close tears down the PeerConnection. Safe to call multiple times;
// after Close the channel cannot be reused.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.teardownConnection()
	})
	return nil
}

// teardownConnection resets connection state to its unset sentinel so
// a later Connect starts clean.
func (c *Channel) teardownConnection() {
	c.mu.Lock()
	pc := c.pc
	c.pc = nil
	c.dc = nil
	c.established = make(chan struct{})
	c.opened = make(chan struct{})
	c.disconnected = false
	c.mu.Unlock()

	if pc != nil {
		pc.Close()
	}
}

// newPeerConnection builds a pion PeerConnection with the current ICE
// config and wires connection state reporting.
func (c *Channel) newPeerConnection() (*webrtc.PeerConnection, error) {
	c.configMu.RLock()
	configuration := webrtc.Configuration{ICEServers: c.iceConfig.Servers}
	c.configMu.RUnlock()

	// Loopback candidates make same-machine sessions and tests work
	// without any STUN server.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(configuration)
	if err != nil {
		return nil, fmt.Errorf("transport: creating PeerConnection: %w", err)
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.handleICEStateChange(pc, state)
	})

	c.mu.Lock()
	c.pc = pc
	c.mu.Unlock()
	return pc, nil
}

// adoptDataChannel installs the session data channel and its handlers.
func (c *Channel) adoptDataChannel(dataChannel *webrtc.DataChannel) {
	dataChannel.OnOpen(func() {
		c.logger.Debug("data channel open", "label", dataChannel.Label(), "peer", c.peer)
		c.mu.Lock()
		opened := c.opened
		c.mu.Unlock()
		select {
		case <-opened:
		default:
			close(opened)
		}
	})

	dataChannel.OnMessage(func(msg webrtc.DataChannelMessage) {
		// Read the handler fresh on every dispatch — never captured
		// at registration time — so reconnect-time re-registration
		// takes effect immediately.
		c.mu.Lock()
		handler := c.messageHandler
		c.mu.Unlock()
		if handler == nil {
			c.logger.Warn("message dropped, no handler registered", "bytes", len(msg.Data))
			return
		}
		handler(msg.Data)
	})

	dataChannel.OnClose(func() {
		c.reportDisconnect("data channel closed")
	})

	c.mu.Lock()
	c.dc = dataChannel
	c.mu.Unlock()
}

// handleICEStateChange tracks connectivity for the current
// PeerConnection and reports loss.
func (c *Channel) handleICEStateChange(pc *webrtc.PeerConnection, state webrtc.ICEConnectionState) {
	c.mu.Lock()
	current := c.pc == pc
	established := c.established
	c.mu.Unlock()
	if !current {
		return
	}

	c.logger.Info("ICE state change", "peer", c.peer, "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		select {
		case <-established:
		default:
			close(established)
		}
	case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateClosed:
		c.reportDisconnect("ice " + state.String())
	}
}

// reportDisconnect invokes the disconnect handler once per
// connection. Local Close suppresses the report.
func (c *Channel) reportDisconnect(reason string) {
	select {
	case <-c.closed:
		return
	default:
	}

	c.mu.Lock()
	if c.disconnected {
		c.mu.Unlock()
		return
	}
	c.disconnected = true
	handler := c.disconnectHandler
	c.mu.Unlock()

	c.logger.Warn("peer disconnected", "peer", c.peer, "reason", reason)
	if handler != nil {
		handler(reason)
	}
}

// waitGathering blocks until vanilla ICE gathering completes.
func (c *Channel) waitGathering(ctx context.Context, gatherComplete <-chan struct{}) error {
	select {
	case <-gatherComplete:
		return nil
	case <-c.clock.After(iceGatherTimeout):
		return fmt.Errorf("transport: ICE gathering timed out after %s", iceGatherTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollSignal polls for the first signal from the configured peer.
func (c *Channel) pollSignal(ctx context.Context, poll func(context.Context, string) ([]SignalMessage, error)) (string, error) {
	ticker := c.clock.NewTicker(signalPollInterval)
	defer ticker.Stop()

	for {
		messages, err := poll(ctx, c.local)
		if err != nil {
			c.logger.Warn("signal poll failed", "error", err)
		}
		for _, msg := range messages {
			if msg.Peer == c.peer {
				return msg.SDP, nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.closed:
			return "", ErrClosed
		}
	}
}

// ptr returns a pointer to v, for pion's optional settings.
func ptr[T any](v T) *T { return &v }
