// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

// DefaultMaxWidth bounds relayed snapshots. Vision models downsample
// anyway; 960px keeps payloads comfortably under data-channel message
// limits.
const DefaultMaxWidth = 960

// DefaultQuality is the JPEG quality used for relay.
const DefaultQuality = 85

// encodeBounded scales img down to at most maxWidth (preserving aspect
// ratio, never scaling up) and returns it as base64 JPEG.
func encodeBounded(img image.Image, maxWidth, quality int) (string, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("empty image %dx%d", width, height)
	}

	if width > maxWidth {
		scaledHeight := height * maxWidth / width
		if scaledHeight < 1 {
			scaledHeight = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, scaledHeight))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Over, nil)
		img = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", fmt.Errorf("jpeg encode: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
