// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists teaching session records and exposes the
// change subscription that drives reconciliation.
//
// The durable owner of TeachingSession and its PresentationMode
// sub-record is a small sqlite database: one row per session, mutated
// by whichever participant makes an authoritative transition. [Store]
// implements the backing-store contract (StartPresentationMode,
// UpdateSlideIndex, EndPresentationMode, EndSession) and [Store.Watch]
// yields the current record after every change, which is how each
// synchronizer observes mutations made by its peer.
//
// There is no transactional guarantee across readers on different
// machines — the reconciliation layer in package session absorbs the
// resulting races.
package store
