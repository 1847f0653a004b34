package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Whisper wraps the whisper CLI for the speech-to-text fallback. It
// implements [Transcriber]. Model load and inference are slow; callers
// are expected to surface coarse progress around the call.
type Whisper struct {
	path   string
	model  string
	logger *slog.Logger
}

// NewWhisper creates a whisper wrapper. If path is empty the binary is
// located via exec.LookPath; a missing binary is reported on first use.
func NewWhisper(path, model string, logger *slog.Logger) *Whisper {
	if path == "" {
		if p, err := exec.LookPath("whisper"); err == nil {
			path = p
		}
	}
	if model == "" {
		model = "base"
	}
	return &Whisper{path: path, model: model, logger: logger}
}

// Transcribe runs the whisper CLI against the given audio file and
// returns the transcript text with surrounding whitespace trimmed.
// The transcript file is written next to the audio file, which lives
// in a caller-scoped temp directory.
func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if w.path == "" {
		return "", fmt.Errorf("whisper not found (install openai-whisper or set extract.whisper_path)")
	}

	outDir := filepath.Dir(audioPath)
	args := []string{
		audioPath,
		"--model", w.model,
		"--output_format", "txt",
		"--output_dir", outDir,
	}

	w.logger.Info("transcribing audio", "file", audioPath, "model", w.model)

	cmd := exec.CommandContext(ctx, w.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errOutput := stderr.String()
		if len(errOutput) > 500 {
			errOutput = errOutput[:500]
		}
		return "", fmt.Errorf("whisper: %w: %s", err, errOutput)
	}

	// whisper names the transcript after the audio file with a .txt
	// extension: audio.m4a -> audio.txt.
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	txtPath := filepath.Join(outDir, base+".txt")

	raw, err := os.ReadFile(txtPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	return strings.TrimSpace(string(raw)), nil
}
