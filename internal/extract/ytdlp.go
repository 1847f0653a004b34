package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Metadata is the subset of yt-dlp --print-json output we keep.
type Metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Channel     string  `json:"channel"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"`
	Description string  `json:"description"`
}

// YtDlp wraps the yt-dlp binary for caption retrieval and audio-only
// download. It implements [VideoSource].
type YtDlp struct {
	path   string
	logger *slog.Logger
}

// NewYtDlp creates a yt-dlp wrapper. If path is empty the binary is
// located via exec.LookPath; a missing binary is reported on first use,
// not at construction.
func NewYtDlp(path string, logger *slog.Logger) *YtDlp {
	if path == "" {
		if p, err := exec.LookPath("yt-dlp"); err == nil {
			path = p
		}
	}
	return &YtDlp{path: path, logger: logger}
}

// Captions requests any available caption track for the given URL,
// preferring the requested language and accepting auto-generated
// captions, without downloading media. It returns the raw caption file
// content, or an empty string when the video has no captions (which is
// not an error). Caption files are written into dir; the caller owns
// the directory's lifecycle.
func (y *YtDlp) Captions(ctx context.Context, rawURL, language, dir string) (string, *Metadata, error) {
	if y.path == "" {
		return "", nil, fmt.Errorf("yt-dlp not found (install yt-dlp or set extract.yt_dlp_path)")
	}

	args := []string{
		"--write-sub",
		"--write-auto-sub",
		"--sub-lang", language,
		"--skip-download",
		"--print-json",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(dir, "%(id)s"),
		rawURL,
	}

	y.logger.Info("fetching captions", "url", rawURL, "language", language)

	meta, err := y.run(ctx, args)
	if err != nil {
		return "", nil, err
	}

	// yt-dlp names caption files {id}.{lang}.vtt. With both --write-sub
	// and --write-auto-sub, manual subs win when available.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", meta, fmt.Errorf("read caption dir: %w", err)
	}

	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".vtt") {
			raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return "", meta, fmt.Errorf("read caption file: %w", err)
			}
			return string(raw), meta, nil
		}
	}

	// No caption track exists. The pipeline falls through to audio.
	return "", meta, nil
}

// Audio downloads the best available audio-only stream into dir and
// returns the downloaded file's path.
func (y *YtDlp) Audio(ctx context.Context, rawURL, dir string) (string, error) {
	if y.path == "" {
		return "", fmt.Errorf("yt-dlp not found (install yt-dlp or set extract.yt_dlp_path)")
	}

	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		rawURL,
	}

	y.logger.Info("downloading audio", "url", rawURL)

	if _, err := y.run(ctx, args); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read audio dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "audio.") {
			return filepath.Join(dir, e.Name()), nil
		}
	}

	return "", fmt.Errorf("yt-dlp produced no audio file")
}

// run executes yt-dlp and parses --print-json metadata from stdout
// when present. stderr is truncated into the error for diagnostics.
func (y *YtDlp) run(ctx context.Context, args []string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, y.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOutput := stderr.String()
		if len(errOutput) > 500 {
			errOutput = errOutput[:500]
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, errOutput)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, nil
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		// Metadata is best-effort; a parse failure should not sink the
		// step that produced usable files.
		y.logger.Warn("parse yt-dlp metadata", "error", err)
		return nil, nil
	}
	return &meta, nil
}

// SourceID parses a URL to determine the source platform and video ID.
func SourceID(rawURL string) (source, id string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown", ""
	}

	host := strings.ToLower(u.Hostname())

	switch {
	case strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be"):
		source = "youtube"
		if strings.Contains(host, "youtu.be") {
			id = strings.TrimPrefix(u.Path, "/")
		} else {
			id = u.Query().Get("v")
		}
	case strings.Contains(host, "vimeo.com"):
		source = "vimeo"
		id = strings.TrimPrefix(u.Path, "/")
	case strings.Contains(host, "twitch.tv"):
		source = "twitch"
		id = strings.TrimPrefix(u.Path, "/videos/")
	default:
		source = strings.TrimPrefix(host, "www.")
		parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		if len(parts) > 0 {
			id = parts[len(parts)-1]
		}
	}

	return source, id
}

// FormatDuration converts seconds to "H:MM:SS" or "MM:SS" format.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatDate converts yt-dlp's "YYYYMMDD" date format to "YYYY-MM-DD".
func FormatDate(yyyymmdd string) string {
	if len(yyyymmdd) != 8 {
		return yyyymmdd
	}
	return yyyymmdd[:4] + "-" + yyyymmdd[4:6] + "-" + yyyymmdd[6:8]
}
