// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package session keeps the two participants of a live teaching room
// agreed on what is currently being taught.
//
// [Machine] is the content state machine: Idle, Presenting, or Gaming,
// with clamped navigation and mutual exclusion between the two active
// modes (switching keeps the other mode's resume position).
// [Reconciler] merges optimistic local navigation with snapshots of
// the persisted record pushed by the peer, using a short grace window
// keyed on local-change timestamps. [Lifecycle] derives lesson timing
// (elapsed, wrap-up, remaining) from wall-clock difference on a
// 1-second tick. [Synchronizer] orchestrates: it owns the data-channel
// dispatcher, routes inbound messages into the machine, persists and
// publishes local changes, relays captures, and tears everything down
// idempotently on disconnect.
//
// All state mutation is serialized: inbound messages, local UI
// actions, watcher snapshots, and timer ticks each take the
// synchronizer's dispatch lock, so the machine never sees concurrent
// mutation.
package session
