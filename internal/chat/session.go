// Package chat manages the conversation session: a model transcript
// seeded with extracted video content, plus the question/answer history
// layered on top of it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clipqa/clipqa/internal/events"
	"github.com/clipqa/clipqa/internal/llm"
	"github.com/clipqa/clipqa/internal/prompts"
)

// ErrNotPrimed is returned by Ask when no content has been loaded.
var ErrNotPrimed = errors.New("no content loaded; analyze a video first")

// State describes whether the session holds primed content.
type State string

const (
	// StateEmpty means no content is loaded; Ask is rejected.
	StateEmpty State = "empty"
	// StateReady means the session is primed and accepts questions.
	StateReady State = "ready"
)

// Exchange is one question/answer pair. Answer is empty while the
// question is in flight.
type Exchange struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Asked    time.Time `json:"asked"`
}

// Session holds one conversation over one video's content. All methods
// are safe for concurrent use; model calls are serialized so transcript
// order is never interleaved.
type Session struct {
	client llm.Client
	model  string
	bus    *events.Bus
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	transcript []llm.Message
	history    []Exchange
	content    string
}

// NewSession creates an empty session bound to a model.
func NewSession(client llm.Client, model string, bus *events.Bus, logger *slog.Logger) *Session {
	return &Session{
		client: client,
		model:  model,
		bus:    bus,
		logger: logger,
		state:  StateEmpty,
	}
}

// Prime replaces the session's content: the transcript is rebuilt from
// scratch with the persona and a seed message embedding the content,
// and the model's acknowledgment is requested non-streaming. On any
// failure the session rolls back to empty — a half-primed transcript is
// never left behind.
func (s *Session) Prime(ctx context.Context, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = []llm.Message{
		{Role: llm.RoleSystem, Content: prompts.Persona},
		{Role: llm.RoleUser, Content: prompts.Seed(content)},
	}
	s.history = nil
	s.state = StateEmpty
	s.content = content

	resp, err := s.client.Chat(ctx, s.model, s.transcript)
	if err != nil {
		s.transcript = nil
		s.content = ""
		s.bus.Error(events.SourceChat, fmt.Sprintf("Priming failed: %v", err))
		return fmt.Errorf("prime session: %w", err)
	}

	s.transcript = append(s.transcript, llm.Message{
		Role:    llm.RoleAssistant,
		Content: resp.Message.Content,
	})
	s.state = StateReady

	s.logger.Info("session primed", "model", s.model, "content_chars", len(s.content))
	s.bus.Publish(events.Event{
		Source: events.SourceChat,
		Kind:   events.KindPrimed,
		Data:   map[string]any{"content_chars": len(s.content), "model": s.model},
	})
	return nil
}

// Ask submits a question over the primed content. The full transcript
// is sent so the model sees the content and every prior exchange.
// Deltas are forwarded to onDelta as they stream in; the complete
// answer is returned at the end. When the model call fails mid-stream a
// fixed apologetic answer takes the assistant turn so the transcript
// keeps alternating, and that answer is returned alongside the error.
func (s *Session) Ask(ctx context.Context, question string, onDelta func(delta string)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return "", ErrNotPrimed
	}

	started := time.Now()
	s.bus.Publish(events.Event{
		Source: events.SourceChat,
		Kind:   events.KindAnswerStart,
		Data:   map[string]any{"question": question},
	})

	s.transcript = append(s.transcript, llm.Message{Role: llm.RoleUser, Content: question})
	s.history = append(s.history, Exchange{Question: question, Asked: started})

	var callback llm.StreamCallback
	if onDelta != nil {
		callback = llm.StreamCallback(onDelta)
	} else {
		callback = func(string) {}
	}

	resp, err := s.client.ChatStream(ctx, s.model, s.transcript, callback)
	if err != nil {
		answer := prompts.AskFallback
		s.transcript = append(s.transcript, llm.Message{Role: llm.RoleAssistant, Content: answer})
		s.history[len(s.history)-1].Answer = answer
		s.logger.Error("ask failed", "error", err)
		s.bus.Error(events.SourceChat, fmt.Sprintf("Question failed: %v", err))
		return answer, fmt.Errorf("ask: %w", err)
	}

	answer := resp.Message.Content
	s.transcript = append(s.transcript, llm.Message{Role: llm.RoleAssistant, Content: answer})
	s.history[len(s.history)-1].Answer = answer

	s.logger.Info("question answered",
		"question_chars", len(question),
		"answer_chars", len(answer),
		"elapsed", time.Since(started).Round(time.Millisecond))
	s.bus.Publish(events.Event{
		Source: events.SourceChat,
		Kind:   events.KindAnswerDone,
		Data: map[string]any{
			"question":     question,
			"answer_chars": len(answer),
			"elapsed_ms":   time.Since(started).Milliseconds(),
		},
	})
	return answer, nil
}

// Clear resets the session to empty. A cleared session primes again
// exactly like a fresh one.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = nil
	s.history = nil
	s.state = StateEmpty
	s.content = ""

	s.bus.Publish(events.Event{
		Source: events.SourceChat,
		Kind:   events.KindCleared,
	})
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Content returns the primed content, empty when the session is empty.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

// ContentChars returns the size of the primed content, 0 when empty.
func (s *Session) ContentChars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.content)
}

// Model returns the model name the session is bound to.
func (s *Session) Model() string {
	return s.model
}

// History returns a copy of the question/answer exchanges in ask order.
func (s *Session) History() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.history))
	copy(out, s.history)
	return out
}

// Transcript returns a copy of the full model transcript.
func (s *Session) Transcript() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}
