package extract

import (
	"regexp"
	"strings"
)

// vttHeaderRe matches the WEBVTT header block: the magic line plus any
// metadata lines up to the first blank line.
var vttHeaderRe = regexp.MustCompile(`(?s)^WEBVTT.*?\n\n`)

// timingLineRe matches VTT timing cues like "00:00:01.234 --> 00:00:03.456"
// with optional position/alignment metadata after the timestamps.
var timingLineRe = regexp.MustCompile(`(?m)^\d{2}:\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}\.\d{3}.*?\n`)

// markupTagRe matches inline markup tags commonly found in VTT files
// (<c>, <i>, <font>, voice spans, karaoke timestamps).
var markupTagRe = regexp.MustCompile(`<[^>]+>`)

// stageDirectionRe matches bracketed stage directions like "[Music]"
// or "[Applause]", including their delimiters.
var stageDirectionRe = regexp.MustCompile(`\[[^\]]*\]`)

// lyricRe matches text between paired musical-note markers, the
// convention captions use for song lyrics.
var lyricRe = regexp.MustCompile(`(?s)♪.*?♪`)

// newlineRunRe and spaceRunRe collapse the survivors into one line of
// single-spaced words.
var (
	newlineRunRe = regexp.MustCompile(`\n+`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// CleanVTT takes raw VTT caption content and produces clean plain text.
// The pipeline strips the header block, timing lines, inline markup,
// bracketed stage directions, and lyric segments, then collapses all
// whitespace so the result is a single line of single-spaced words.
// It is pure text normalization — no cue structure survives.
func CleanVTT(raw string) string {
	if raw == "" {
		return ""
	}

	text := vttHeaderRe.ReplaceAllString(raw, "")
	text = timingLineRe.ReplaceAllString(text, "")
	text = markupTagRe.ReplaceAllString(text, "")
	text = stageDirectionRe.ReplaceAllString(text, "")
	text = lyricRe.ReplaceAllString(text, "")
	text = newlineRunRe.ReplaceAllString(text, " ")
	text = spaceRunRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
