// Package events provides a publish/subscribe event bus for the
// user-visible channel. Events flow from components (extractor, chat
// session) to subscribers (WebSocket handler, CLI progress printer).
// The bus is nil-safe: calling Publish on a nil *Bus is a no-op, so
// components do not need guard checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourceExtract identifies events from the content extractor.
	SourceExtract = "extract"
	// SourceChat identifies events from the conversation session.
	SourceChat = "chat"
)

// Kind constants describe the type of event within a source.
const (
	// KindProgress reports extraction progress.
	// Data: percent, status.
	KindProgress = "progress"
	// KindError reports a user-visible failure.
	// Data: message.
	KindError = "error"

	// KindPrimed signals the session was seeded with new content.
	// Data: content_chars, model.
	KindPrimed = "primed"
	// KindAnswerStart signals a question was submitted.
	// Data: question.
	KindAnswerStart = "answer_start"
	// KindAnswerDone signals an answer stream completed.
	// Data: question, answer_chars, elapsed_ms.
	KindAnswerDone = "answer_done"
	// KindCleared signals the session was reset.
	KindCleared = "cleared"
)

// Event represents a single event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus. Subscribers receive events
// on buffered channels; slow subscribers miss events rather than
// blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Progress publishes an extraction progress event with the given
// percentage and status text. Safe on a nil receiver.
func (b *Bus) Progress(percent int, status string) {
	b.Publish(Event{
		Source: SourceExtract,
		Kind:   KindProgress,
		Data:   map[string]any{"percent": percent, "status": status},
	})
}

// Error publishes a user-visible error message. Safe on a nil receiver.
func (b *Bus) Error(source, message string) {
	b.Publish(Event{
		Source: source,
		Kind:   KindError,
		Data:   map[string]any{"message": message},
	})
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
