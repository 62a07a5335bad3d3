// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	// Decoders for the slide image formats converters produce.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// fetchTimeout bounds one slide image download. Slow origins fall back
// to URL relay rather than stalling the pipeline.
const fetchTimeout = 10 * time.Second

// fetchImage downloads and decodes a pre-rendered slide image.
func fetchImage(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, response.StatusCode)
	}

	img, _, err := image.Decode(response.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	return img, nil
}
