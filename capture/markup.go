// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"bytes"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/draw"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Slide canvas geometry: a 16:9 surface large enough that the bounded
// re-encode keeps text legible.
const (
	canvasWidth  = 1280
	canvasHeight = 720
	canvasMargin = 48
	lineHeight   = 20
	// maxLineChars wraps body text to the canvas width at the 7px
	// glyph advance of the basicfont face.
	maxLineChars = (canvasWidth - 2*canvasMargin) / 7
)

// blockTag matches HTML block boundaries that become line breaks when
// the rendered markup is flattened for rasterization.
var blockTag = regexp.MustCompile(`(?i)</(?:p|h[1-6]|li|div|blockquote|tr|pre)>|<br\s*/?>`)

// anyTag strips remaining inline markup.
var anyTag = regexp.MustCompile(`<[^>]*>`)

// markupRenderer rasterizes a markdown slide fragment onto an
// off-screen canvas. This is the isolated rendering surface for markup
// content: the fragment is self-contained and nothing outside the
// canvas is captured.
type markupRenderer struct {
	markdown goldmark.Markdown
}

func newMarkupRenderer() *markupRenderer {
	return &markupRenderer{markdown: goldmark.New()}
}

// render converts the fragment to HTML, flattens it to lines, and
// draws the lines on a fresh canvas. The title, when present, is drawn
// first with a blank line after it.
func (r *markupRenderer) render(title, fragment string) (image.Image, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(fragment), &buf); err != nil {
		return nil, fmt.Errorf("markdown convert: %w", err)
	}

	lines := flatten(buf.String())
	if title != "" {
		lines = append([]string{title, ""}, lines...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}

	y := canvasMargin + lineHeight
	for _, line := range lines {
		if y > canvasHeight-canvasMargin {
			break // overflow is clipped, not scrolled
		}
		drawer.Dot = fixed.P(canvasMargin, y)
		drawer.DrawString(line)
		y += lineHeight
	}
	return canvas, nil
}

// flatten turns rendered HTML into wrapped plain-text lines.
func flatten(rendered string) []string {
	separated := blockTag.ReplaceAllString(rendered, "\n")
	stripped := anyTag.ReplaceAllString(separated, "")

	var lines []string
	for _, raw := range strings.Split(stripped, "\n") {
		text := strings.TrimSpace(html.UnescapeString(raw))
		if text == "" {
			continue
		}
		lines = append(lines, wrap(text, maxLineChars)...)
	}
	return lines
}

// wrap breaks text into lines of at most width characters at word
// boundaries. A single word longer than width gets its own line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	var lines []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if current.Len()+1+len(word) > width {
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			continue
		}
		current.WriteByte(' ')
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
