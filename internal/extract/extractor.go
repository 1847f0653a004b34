// Package extract turns a video URL into clean spoken-content text.
// The primary path reads the video's caption track via yt-dlp; when no
// usable captions exist it falls back to downloading the audio and
// transcribing it with whisper.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/clipqa/clipqa/internal/config"
	"github.com/clipqa/clipqa/internal/events"
)

// ErrNoContent is returned when every extraction path produced empty
// text for a video.
var ErrNoContent = errors.New("no spoken content could be extracted")

// VideoSource retrieves captions and audio for a video URL. The
// production implementation is [YtDlp].
type VideoSource interface {
	// Captions returns raw caption file content, or "" when the video
	// has no caption track. Metadata may be non-nil even when captions
	// are absent.
	Captions(ctx context.Context, url, language, dir string) (string, *Metadata, error)
	// Audio downloads an audio-only stream into dir and returns its path.
	Audio(ctx context.Context, url, dir string) (string, error)
}

// Transcriber converts an audio file into text. The production
// implementation is [Whisper].
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Result is the outcome of a successful extraction.
type Result struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Channel      string `json:"channel"`
	Duration     string `json:"duration"`
	UploadDate   string `json:"upload_date,omitempty"`
	Source       string `json:"source"`
	VideoID      string `json:"video_id"`
	Content      string `json:"-"`
	ContentChars int    `json:"content_chars"`
	Truncated    bool   `json:"truncated"`
	FromCaptions bool   `json:"from_captions"`
}

// Extractor runs the caption-first, transcription-fallback pipeline.
type Extractor struct {
	source          VideoSource
	transcriber     Transcriber
	language        string
	maxContentChars int
	bus             *events.Bus
	logger          *slog.Logger
}

// New creates an Extractor wired to the real yt-dlp and whisper
// binaries per the given config.
func New(cfg config.ExtractConfig, bus *events.Bus, logger *slog.Logger) *Extractor {
	return &Extractor{
		source:          NewYtDlp(cfg.YtDlpPath, logger),
		transcriber:     NewWhisper(cfg.WhisperPath, cfg.WhisperModel, logger),
		language:        cfg.SubtitleLanguage,
		maxContentChars: cfg.MaxContentChars,
		bus:             bus,
		logger:          logger,
	}
}

// NewWithDeps creates an Extractor with explicit collaborators. Used in
// tests and anywhere the binaries are substituted.
func NewWithDeps(source VideoSource, transcriber Transcriber, maxContentChars int, bus *events.Bus, logger *slog.Logger) *Extractor {
	return &Extractor{
		source:          source,
		transcriber:     transcriber,
		language:        "en",
		maxContentChars: maxContentChars,
		bus:             bus,
		logger:          logger,
	}
}

// Extract runs the full pipeline for one URL. A failed caption step is
// not fatal — the pipeline falls through to transcription — but a
// failure in the final transcription path is. Progress is published on
// the event bus as the steps advance.
func (e *Extractor) Extract(ctx context.Context, url string) (*Result, error) {
	language := e.language
	if language == "" {
		language = "en"
	}
	e.bus.Progress(10, "Processing video...")

	var meta *Metadata

	// Step 1: captions.
	e.bus.Progress(30, "Trying to extract subtitles...")
	content, capMeta, err := e.captionStep(ctx, url, language)
	if capMeta != nil {
		meta = capMeta
	}
	switch {
	case err != nil:
		// Not fatal; the audio path may still work.
		e.logger.Warn("caption extraction failed", "url", url, "error", err)
		e.bus.Error(events.SourceExtract, fmt.Sprintf("Subtitle extraction failed: %v", err))
	case content != "":
		e.bus.Progress(100, "Subtitles extracted successfully!")
		return e.result(url, meta, content, true), nil
	}

	// Step 2: audio transcription fallback.
	e.bus.Progress(50, "No subtitles found. Transcribing audio...")
	content, err = e.transcriptionStep(ctx, url)
	if err != nil {
		e.bus.Error(events.SourceExtract, fmt.Sprintf("Extraction failed: %v", err))
		return nil, err
	}
	if content == "" {
		e.bus.Error(events.SourceExtract, "No spoken content found in audio")
		return nil, ErrNoContent
	}

	e.bus.Progress(100, "Audio transcription completed!")
	return e.result(url, meta, content, false), nil
}

// captionStep fetches and cleans the caption track. An empty result
// with a nil error means the video simply has no usable captions.
func (e *Extractor) captionStep(ctx context.Context, url, language string) (string, *Metadata, error) {
	dir, err := os.MkdirTemp("", "clipqa-captions-")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	raw, meta, err := e.source.Captions(ctx, url, language, dir)
	if err != nil {
		return "", meta, err
	}
	if raw == "" {
		return "", meta, nil
	}

	cleaned := CleanVTT(raw)
	if cleaned == "" {
		// Caption track exists but holds no speech (all annotations).
		e.logger.Debug("caption track empty after cleaning", "url", url)
		return "", meta, nil
	}
	return cleaned, meta, nil
}

// transcriptionStep downloads the audio and runs speech-to-text. Any
// error here sinks the extraction as a whole.
func (e *Extractor) transcriptionStep(ctx context.Context, url string) (string, error) {
	dir, err := os.MkdirTemp("", "clipqa-audio-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	e.bus.Progress(60, "Downloading audio...")
	audioPath, err := e.source.Audio(ctx, url, dir)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	e.bus.Progress(70, "Loading speech model...")
	e.bus.Progress(80, "Transcribing audio...")
	text, err := e.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return text, nil
}

// result assembles the Result, applying the content-size cap.
func (e *Extractor) result(url string, meta *Metadata, content string, fromCaptions bool) *Result {
	r := &Result{
		URL:          url,
		Content:      content,
		FromCaptions: fromCaptions,
	}

	r.Source, r.VideoID = SourceID(url)

	if meta != nil {
		r.Title = meta.Title
		r.Channel = meta.Channel
		if r.Channel == "" {
			r.Channel = meta.Uploader
		}
		r.Duration = FormatDuration(meta.Duration)
		r.UploadDate = FormatDate(meta.UploadDate)
		if meta.ID != "" {
			r.VideoID = meta.ID
		}
	}
	if r.Title == "" {
		r.Title = url
	}

	if e.maxContentChars > 0 && len(r.Content) > e.maxContentChars {
		r.Content = r.Content[:e.maxContentChars]
		r.Truncated = true
		e.logger.Info("content truncated", "url", url, "max_chars", e.maxContentChars)
	}
	r.ContentChars = len(r.Content)

	return r
}
