// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries data-channel messages between the two
// session participants over WebRTC.
//
// [Channel] owns one PeerConnection to the single remote participant
// and one SCTP data channel on it. The protocol is two-party by
// design: there is no recipient routing and no broadcast fan-out.
// Messages are delivered in transport order; a registered message
// handler is invoked sequentially, never concurrently.
//
// Signaling is abstracted behind the [Signaler] interface, which
// publishes and polls SDP offers and answers in vanilla ICE mode (all
// candidates gathered before the SDP is published, so establishment
// needs exactly one round-trip). [MemorySignaler] is the in-process
// implementation used by tests and same-process sessions.
//
// When both participants dial at once, the lexicographically smaller
// participant name is the canonical offerer and the other side
// answers. Connection loss surfaces through the disconnect handler;
// the channel itself never retries.
package transport
