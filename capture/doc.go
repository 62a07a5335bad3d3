// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture produces the vision-relay snapshots of the taught
// content: compact JPEGs of the active slide or game item, forwarded
// to the AI participant so it can see what is on screen.
//
// Two strategies cover the two content kinds. Markup slides are
// rendered in an isolated off-screen surface (markdown through
// goldmark, rasterized onto a fixed 16:9 canvas) and encoded bounded
// to a maximum width. Pre-rendered image slides are fetched from
// their URL and re-encoded; when the fetch fails (cross-origin,
// network), the pipeline falls back to relaying the raw URL so the
// receiver can fetch it independently.
//
// Captures are triggered once on initial mount and once per confirmed
// index change, after a short settle delay. Every capture carries the
// index it was issued for — a capture that completes after the index
// has moved on still publishes under its original index, and the
// receiver discards mismatches. Capture failures are logged and skip
// that notification; they never block navigation.
package capture
