// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"time"

	"github.com/podium-foundation/podium/lib/clock"
)

// DefaultGraceWindow is how long a local navigation outranks a
// conflicting remote snapshot. Within the window the local index is
// assumed to be in flight toward the peer; after it, the remote value
// wins.
const DefaultGraceWindow = 1000 * time.Millisecond

// noPublishedIndex marks the echo-suppression slot as unset.
const noPublishedIndex = -1

// Reconciler merges optimistic local navigation with persisted-state
// snapshots pushed from the peer. It is not safe for concurrent use;
// the synchronizer serializes access under its dispatch lock.
type Reconciler struct {
	clock       clock.Clock
	graceWindow time.Duration

	// lastLocalChange is the wall-clock time of the most recent local
	// navigation, zero when none has happened yet.
	lastLocalChange time.Time

	// lastPublishedIndex suppresses echo: a snapshot or inbound change
	// matching the index we most recently announced needs no re-apply
	// and no re-announce.
	lastPublishedIndex int
}

// NewReconciler returns a reconciler with the default grace window.
func NewReconciler(clk clock.Clock) *Reconciler {
	return &Reconciler{
		clock:              clk,
		graceWindow:        DefaultGraceWindow,
		lastPublishedIndex: noPublishedIndex,
	}
}

// SetGraceWindow overrides the grace window. Zero disables it, making
// every differing remote snapshot win immediately.
func (r *Reconciler) SetGraceWindow(d time.Duration) { r.graceWindow = d }

// StampLocalChange records that a local navigation just happened.
// Remote snapshots that disagree are ignored for the grace window
// starting now.
func (r *Reconciler) StampLocalChange() {
	r.lastLocalChange = r.clock.Now()
}

// ShouldApplyRemote decides whether a remote index snapshot overrides
// the local index. Matching values never need applying. A differing
// value is ignored while a local change is inside the grace window;
// otherwise the remote side wins (last-writer-wins with the grace
// window as the tiebreak).
func (r *Reconciler) ShouldApplyRemote(remoteIndex, localIndex int) bool {
	if remoteIndex == localIndex {
		return false
	}
	if r.lastLocalChange.IsZero() {
		return true
	}
	return r.clock.Now().Sub(r.lastLocalChange) >= r.graceWindow
}

// NotePublished records the index most recently announced to (or
// adopted from) the peer.
func (r *Reconciler) NotePublished(index int) {
	r.lastPublishedIndex = index
}

// ShouldPublish reports whether announcing index would tell the peer
// anything new.
func (r *Reconciler) ShouldPublish(index int) bool {
	return index != r.lastPublishedIndex
}

// Reset clears all reconciliation state back to the unset sentinels,
// as on session teardown.
func (r *Reconciler) Reset() {
	r.lastLocalChange = time.Time{}
	r.lastPublishedIndex = noPublishedIndex
}
