package extract

import (
	"strings"
	"testing"
)

func TestCleanVTT_Empty(t *testing.T) {
	if got := CleanVTT(""); got != "" {
		t.Errorf("CleanVTT(\"\") = %q, want empty", got)
	}
}

func TestCleanVTT_BracketedAnnotation(t *testing.T) {
	raw := "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nHello [Music] world\n\n"
	got := CleanVTT(raw)
	if got != "Hello world" {
		t.Errorf("CleanVTT = %q, want %q", got, "Hello world")
	}
}

func TestCleanVTT_HeaderWithMetadata(t *testing.T) {
	raw := "WEBVTT\nKind: captions\nLanguage: en\n\n00:00:01.000 --> 00:00:03.000\nHello world\n"
	got := CleanVTT(raw)
	if got != "Hello world" {
		t.Errorf("CleanVTT = %q, want %q", got, "Hello world")
	}
}

func TestCleanVTT_MultipleCues_SingleLine(t *testing.T) {
	raw := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:03.000\nFirst cue text\n\n" +
		"00:00:03.000 --> 00:00:05.000\nSecond cue text\n\n" +
		"00:00:05.000 --> 00:00:07.000\nThird cue text\n\n"

	got := CleanVTT(raw)
	want := "First cue text Second cue text Third cue text"
	if got != want {
		t.Errorf("CleanVTT:\n got: %q\nwant: %q", got, want)
	}
	if strings.Contains(got, "\n") {
		t.Error("output must not contain newlines")
	}
	if strings.Contains(got, "  ") {
		t.Error("output must not contain double spaces")
	}
	if strings.Contains(got, "-->") {
		t.Error("output must not contain timing lines")
	}
}

func TestCleanVTT_TimingWithPositionMetadata(t *testing.T) {
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000 position:10% align:start\nHello world\n"
	got := CleanVTT(raw)
	if got != "Hello world" {
		t.Errorf("CleanVTT = %q, want %q", got, "Hello world")
	}
}

func TestCleanVTT_MarkupTags(t *testing.T) {
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n<font color=\"#ffffff\">Hello</font> <c.colorE5E5E5>world</c>\n"
	got := CleanVTT(raw)
	if got != "Hello world" {
		t.Errorf("CleanVTT = %q, want %q", got, "Hello world")
	}
}

func TestCleanVTT_LyricMarkers(t *testing.T) {
	// Both the markers and the text between them go away.
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nbefore ♪ la la la ♪ after\n"
	got := CleanVTT(raw)
	if got != "before after" {
		t.Errorf("CleanVTT = %q, want %q", got, "before after")
	}
}

func TestCleanVTT_LyricMarkersAcrossLines(t *testing.T) {
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\n♪ verse one\nverse two ♪\nspoken text\n"
	got := CleanVTT(raw)
	if got != "spoken text" {
		t.Errorf("CleanVTT = %q, want %q", got, "spoken text")
	}
}

func TestCleanVTT_AnnotationOnlyCue(t *testing.T) {
	// A cue that is nothing but a stage direction contributes nothing.
	raw := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:03.000\n[Applause]\n\n" +
		"00:00:03.000 --> 00:00:05.000\nThank you everyone\n\n"

	got := CleanVTT(raw)
	if got != "Thank you everyone" {
		t.Errorf("CleanVTT = %q, want %q", got, "Thank you everyone")
	}
}

func TestCleanVTT_PlainTextPassthrough(t *testing.T) {
	got := CleanVTT("Just some plain text")
	if got != "Just some plain text" {
		t.Errorf("CleanVTT = %q, want %q", got, "Just some plain text")
	}
}

func TestCleanVTT_WhitespaceCollapse(t *testing.T) {
	raw := "WEBVTT\n\n00:00:01.000 --> 00:00:03.000\nHello\t\t world\n\n\n\nmore   text\n"
	got := CleanVTT(raw)
	if got != "Hello world more text" {
		t.Errorf("CleanVTT = %q, want %q", got, "Hello world more text")
	}
}
