// Package config handles clipqa configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/clipqa/config.yaml, /etc/clipqa/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "clipqa", "config.yaml"))
	}

	paths = append(paths, "/etc/clipqa/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all clipqa configuration.
type Config struct {
	Listen   ListenConfig  `yaml:"listen"`
	Ollama   OllamaConfig  `yaml:"ollama"`
	Extract  ExtractConfig `yaml:"extract"`
	DataDir  string        `yaml:"data_dir"`
	LogLevel string        `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OllamaConfig defines the chat-completion collaborator settings.
type OllamaConfig struct {
	// URL is the Ollama base URL (default http://localhost:11434).
	URL string `yaml:"url"`
	// Model is the chat model name used for priming and questions.
	Model string `yaml:"model"`
}

// ExtractConfig defines content extraction settings.
type ExtractConfig struct {
	// YtDlpPath is the path to the yt-dlp binary. If empty, the binary
	// is located via exec.LookPath.
	YtDlpPath string `yaml:"yt_dlp_path"`
	// WhisperPath is the path to the whisper binary used for the
	// speech-to-text fallback. If empty, located via exec.LookPath.
	WhisperPath string `yaml:"whisper_path"`
	// WhisperModel is the whisper model size (default "base").
	WhisperModel string `yaml:"whisper_model"`
	// SubtitleLanguage is the preferred caption language code (default "en").
	SubtitleLanguage string `yaml:"subtitle_language"`
	// MaxContentChars limits the extracted text seeded into the chat
	// context. Longer content is truncated. Default: 50000.
	MaxContentChars int `yaml:"max_content_chars"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: "data",
		Ollama: OllamaConfig{
			URL:   "http://localhost:11434",
			Model: "llama3.2",
		},
		Extract: ExtractConfig{
			WhisperModel:     "base",
			SubtitleLanguage: "en",
			MaxContentChars:  50000,
		},
	}
}
