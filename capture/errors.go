// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import "fmt"

// CaptureError reports a failed render or rasterization. The pipeline
// logs it and skips the notification; for image content it falls back
// to URL relay instead.
type CaptureError struct {
	// Stage is where the capture failed ("render", "fetch", "decode",
	// "encode").
	Stage string
	// SlideIndex is the index the capture was issued for.
	SlideIndex int
	Err        error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: %s failed for slide %d: %v", e.Stage, e.SlideIndex, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }
