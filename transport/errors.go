// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("transport: channel closed")

// SendError reports a message that could not be handed to the data
// channel. Sends are fire-and-forget: the caller logs the error and
// drops the message, there is no retry queue. The channel may recover
// on its own for later messages.
type SendError struct {
	// Reason describes the failure.
	Reason string
	// Err is the underlying transport error, if any.
	Err error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: send failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: send failed: %s", e.Reason)
}

func (e *SendError) Unwrap() error { return e.Err }
