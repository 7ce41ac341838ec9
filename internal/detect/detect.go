// Package detect finds sensitive data in decoded object text.
//
// It runs a fixed catalogue of regex detectors (SSN, credit card, AWS
// credentials, email, US phone) over the input and emits masked matches
// with byte offsets and a short surrounding snippet. Detection is pure:
// the same text always yields the same matches in the same order.
package detect

import (
	"context"
	"log/slog"
	"strings"

	"github.com/fairyhunter13/bucketscan/internal/domain"
	"github.com/fairyhunter13/bucketscan/pkg/textx"
)

// Engine runs the detector catalogue over text. The zero value is not
// usable; construct with New.
type Engine struct {
	detectors []Detector
}

// New returns an Engine backed by the built-in detector catalogue.
func New() *Engine {
	return &Engine{detectors: catalogue}
}

// Scan runs every detector over text and returns the matches in catalogue
// order, then pattern order, then position order. A cancelled context stops
// the scan early with whatever was found so far. Empty text yields no
// matches.
func (e *Engine) Scan(ctx context.Context, text string) []domain.Match {
	if text == "" {
		return nil
	}
	var out []domain.Match
	for i := range e.detectors {
		if ctx.Err() != nil {
			return out
		}
		out = append(out, e.runDetector(ctx, &e.detectors[i], text)...)
	}
	return out
}

// runDetector executes a single detector, pattern by pattern, match by match.
func (e *Engine) runDetector(ctx context.Context, d *Detector, text string) []domain.Match {
	var matches []domain.Match
	for _, re := range d.Patterns {
		if ctx.Err() != nil {
			return matches
		}
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if m, ok := emitCandidate(d, text, loc); ok {
				matches = append(matches, m)
			}
		}
	}
	return matches
}

// emitCandidate validates, gates and masks one candidate match. A panic in
// any detector hook is recovered and logged here so a single bad candidate
// cannot abort scanning the rest of the buffer.
func emitCandidate(d *Detector, text string, loc []int) (m domain.Match, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("detector candidate failed",
				slog.String("detector", d.Name),
				slog.Int("byte_offset", loc[0]),
				slog.Any("panic", r))
			ok = false
		}
	}()

	raw := text[loc[0]:loc[1]]
	if d.Validate != nil && !d.Validate(raw) {
		return domain.Match{}, false
	}
	if len(d.Keywords) > 0 && !keywordNear(text, loc[0], d.Keywords) {
		return domain.Match{}, false
	}
	return domain.Match{
		Detector:    d.Name,
		MaskedMatch: d.Mask(raw),
		Context:     textx.Snippet(textx.Window(text, loc[0], textx.WindowRadius), textx.SnippetMaxLen),
		ByteOffset:  loc[0],
	}, true
}

// keywordNear reports whether any keyword appears, case-insensitively, in
// the window surrounding the match offset.
func keywordNear(text string, offset int, keywords []string) bool {
	window := strings.ToLower(textx.Window(text, offset, textx.WindowRadius))
	for _, k := range keywords {
		if strings.Contains(window, k) {
			return true
		}
	}
	return false
}
