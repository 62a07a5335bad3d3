// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source. [Real] wraps the
// standard time package; [Fake] gives tests deterministic control over
// the synchronizer's grace windows, settle delays, and ticks.
package clock
