package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/clipqa/clipqa/internal/events"
)

type fakeSource struct {
	captions    string
	captionsErr error
	meta        *Metadata
	audioPath   string
	audioErr    error

	captionCalls int
	audioCalls   int
}

func (f *fakeSource) Captions(_ context.Context, _, _, _ string) (string, *Metadata, error) {
	f.captionCalls++
	return f.captions, f.meta, f.captionsErr
}

func (f *fakeSource) Audio(_ context.Context, _, _ string) (string, error) {
	f.audioCalls++
	return f.audioPath, f.audioErr
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtract_CaptionsSucceed(t *testing.T) {
	src := &fakeSource{
		captions: "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nHello [Music] world\n\n",
		meta: &Metadata{
			ID:         "abc123",
			Title:      "Test Video",
			Channel:    "Test Channel",
			Duration:   125,
			UploadDate: "20250115",
		},
	}
	tr := &fakeTranscriber{}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	res, err := e.Extract(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if res.Content != "Hello world" {
		t.Errorf("Content = %q, want %q", res.Content, "Hello world")
	}
	if !res.FromCaptions {
		t.Error("FromCaptions = false, want true")
	}
	if res.Title != "Test Video" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.Channel != "Test Channel" {
		t.Errorf("Channel = %q", res.Channel)
	}
	if res.Duration != "2:05" {
		t.Errorf("Duration = %q, want 2:05", res.Duration)
	}
	if res.UploadDate != "2025-01-15" {
		t.Errorf("UploadDate = %q", res.UploadDate)
	}
	if res.Source != "youtube" || res.VideoID != "abc123" {
		t.Errorf("Source/VideoID = %q/%q", res.Source, res.VideoID)
	}
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times, want 0", tr.calls)
	}
	if res.ContentChars != len(res.Content) {
		t.Errorf("ContentChars = %d, want %d", res.ContentChars, len(res.Content))
	}
}

func TestExtract_FallsBackToTranscription(t *testing.T) {
	src := &fakeSource{
		captions:  "", // no caption track
		audioPath: "/tmp/audio.m4a",
	}
	tr := &fakeTranscriber{text: "transcribed speech"}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	res, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if res.Content != "transcribed speech" {
		t.Errorf("Content = %q", res.Content)
	}
	if res.FromCaptions {
		t.Error("FromCaptions = true, want false")
	}
	if tr.calls != 1 {
		t.Errorf("transcriber called %d times, want 1", tr.calls)
	}
}

func TestExtract_CaptionErrorStillFallsBack(t *testing.T) {
	// A caption step failure must not sink the extraction.
	src := &fakeSource{
		captionsErr: errors.New("boom"),
		audioPath:   "/tmp/audio.m4a",
	}
	tr := &fakeTranscriber{text: "recovered via audio"}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	res, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Content != "recovered via audio" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestExtract_EmptyCaptionsAfterCleaning(t *testing.T) {
	// A caption track with only annotations counts as no captions.
	src := &fakeSource{
		captions:  "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\n[Music]\n\n",
		audioPath: "/tmp/audio.m4a",
	}
	tr := &fakeTranscriber{text: "spoken words"}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	res, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Content != "spoken words" {
		t.Errorf("Content = %q", res.Content)
	}
	if tr.calls != 1 {
		t.Errorf("transcriber called %d times, want 1", tr.calls)
	}
}

func TestExtract_BothPathsFail(t *testing.T) {
	src := &fakeSource{
		captionsErr: errors.New("no captions"),
		audioErr:    errors.New("download refused"),
	}
	tr := &fakeTranscriber{}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	_, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err == nil {
		t.Fatal("expected error when both paths fail")
	}
	if !strings.Contains(err.Error(), "download audio") {
		t.Errorf("error = %v, want download audio context", err)
	}
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times, want 0", tr.calls)
	}
}

func TestExtract_TranscriptionFailureIsFatal(t *testing.T) {
	src := &fakeSource{audioPath: "/tmp/audio.m4a"}
	tr := &fakeTranscriber{err: errors.New("model missing")}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	_, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "transcribe audio") {
		t.Errorf("error = %v, want transcribe audio context", err)
	}
}

func TestExtract_EmptyTranscriptIsNoContent(t *testing.T) {
	src := &fakeSource{audioPath: "/tmp/audio.m4a"}
	tr := &fakeTranscriber{text: ""}

	e := NewWithDeps(src, tr, 0, nil, testLogger())
	_, err := e.Extract(context.Background(), "https://example.com/v/1")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestExtract_ContentTruncation(t *testing.T) {
	long := strings.Repeat("word ", 100)
	src := &fakeSource{
		captions: "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\n" + long + "\n\n",
	}

	e := NewWithDeps(src, &fakeTranscriber{}, 100, nil, testLogger())
	res, err := e.Extract(context.Background(), "https://example.com/v/1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
	if len(res.Content) != 100 {
		t.Errorf("len(Content) = %d, want 100", len(res.Content))
	}
	if res.ContentChars != 100 {
		t.Errorf("ContentChars = %d, want 100", res.ContentChars)
	}
}

func TestExtract_ProgressEvents(t *testing.T) {
	bus := events.New()
	ch := bus.Subscribe(64)
	defer bus.Unsubscribe(ch)

	src := &fakeSource{
		captions: "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nHello world\n\n",
	}
	e := NewWithDeps(src, &fakeTranscriber{}, 0, bus, testLogger())

	if _, err := e.Extract(context.Background(), "https://example.com/v/1"); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var percents []int
	for len(ch) > 0 {
		ev := <-ch
		if ev.Kind != events.KindProgress {
			continue
		}
		percents = append(percents, ev.Data["percent"].(int))
	}

	want := []int{10, 30, 100}
	if len(percents) != len(want) {
		t.Fatalf("progress percents = %v, want %v", percents, want)
	}
	for i := range want {
		if percents[i] != want[i] {
			t.Errorf("progress[%d] = %d, want %d", i, percents[i], want[i])
		}
	}
}

func TestSourceID(t *testing.T) {
	tests := []struct {
		url    string
		source string
		id     string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "youtube", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "youtube", "dQw4w9WgXcQ"},
		{"https://vimeo.com/123456", "vimeo", "123456"},
		{"https://www.twitch.tv/videos/987654", "twitch", "987654"},
		{"https://example.com/media/clip42", "example.com", "clip42"},
		{"not a url", "unknown", ""},
	}

	for _, tt := range tests {
		source, id := SourceID(tt.url)
		if source != tt.source || id != tt.id {
			t.Errorf("SourceID(%q) = %q/%q, want %q/%q", tt.url, source, id, tt.source, tt.id)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{125, "2:05"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate("20250115"); got != "2025-01-15" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := FormatDate("oddball"); got != "oddball" {
		t.Errorf("FormatDate passthrough = %q", got)
	}
}
