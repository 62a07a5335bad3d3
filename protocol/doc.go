// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the data-channel messages exchanged between
// the two session participants and their JSON wire codec.
//
// Messages form a closed tagged union discriminated by a "type" field.
// [Decode] is the single validating boundary: syntactically invalid
// payloads return a [*DecodeError], and unknown message types decode to
// [*Unhandled] so the dispatcher can log and skip forward-incompatible
// payloads without failing. [Encode] writes the matching envelope.
//
// The package also provides [ExtractCommands], which detects and strips
// the silent navigation markers ([NEXT], [SLIDE:3], [GAME:NEXT], ...)
// that the AI participant embeds in speech text to drive navigation
// without the markers being spoken.
package protocol
