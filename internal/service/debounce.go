package service

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

// DrainFunc receives the full drained batch for one identity. It runs on
// the timer goroutine; the identity's buffer is already cleared by the
// time it is called, so a failure here never blocks the next batch.
type DrainFunc func(batch *domain.MessageBatch)

// BufferSummary describes the live buffer for one identity
type BufferSummary struct {
	Identity     domain.Identity `json:"identity"`
	MessageCount int             `json:"message_count"`
	OldestAt     time.Time       `json:"oldest_at"`
	FireAt       time.Time       `json:"fire_at"`
}

// bufferEntry holds the per-identity debounce state. All access goes
// through the scheduler mutex.
type bufferEntry struct {
	messages []domain.BufferedMessage
	timer    *time.Timer
	gen      uint64 // bumped on every (re)arm; stale firings no-op
	fireAt   time.Time
}

// DebounceScheduler accumulates rapid-fire messages per identity and
// hands each quiet-period batch to the drain callback exactly once.
// Every new message restarts the identity's timer.
type DebounceScheduler struct {
	window time.Duration
	drain  DrainFunc
	log    zerolog.Logger

	mu      sync.Mutex
	entries map[domain.Identity]*bufferEntry
	nextGen uint64 // monotonic across all identities and drains
	stopped bool
}

// NewDebounceScheduler creates a new debounce scheduler
func NewDebounceScheduler(window time.Duration, drain DrainFunc, log zerolog.Logger) *DebounceScheduler {
	return &DebounceScheduler{
		window:  window,
		drain:   drain,
		log:     log.With().Str("component", "debounce").Logger(),
		entries: make(map[domain.Identity]*bufferEntry),
	}
}

// OnMessageReceived appends a message to the identity's buffer and
// restarts its debounce timer. Safe for concurrent use; deliveries for
// different identities never contend past the map lookup.
func (s *DebounceScheduler) OnMessageReceived(msg domain.BufferedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Warn().Str("identity", string(msg.Identity)).Msg("scheduler stopped, dropping message")
		return
	}

	entry, ok := s.entries[msg.Identity]
	if !ok {
		entry = &bufferEntry{}
		s.entries[msg.Identity] = entry
	}
	entry.messages = append(entry.messages, msg)

	// Cancel-before-restart: a stopped timer may already be mid-fire,
	// so the generation check in fire is what actually prevents a
	// superseded firing from draining. Generations are global so a
	// stale timer can never match a freshly recreated entry.
	if entry.timer != nil {
		entry.timer.Stop()
	}
	s.nextGen++
	entry.gen = s.nextGen
	entry.fireAt = time.Now().Add(s.window)

	gen := entry.gen
	identity := msg.Identity
	entry.timer = time.AfterFunc(s.window, func() {
		s.fire(identity, gen)
	})

	s.log.Debug().
		Str("identity", string(identity)).
		Int("buffered", len(entry.messages)).
		Time("fireAt", entry.fireAt).
		Msg("timer restarted")
}

// fire drains and processes the buffer for one identity. Superseded
// timers (generation mismatch) are absorbed silently.
func (s *DebounceScheduler) fire(identity domain.Identity, gen uint64) {
	s.mu.Lock()
	entry, ok := s.entries[identity]
	if !ok || entry.gen != gen {
		s.mu.Unlock()
		s.log.Debug().Str("identity", string(identity)).Msg("superseded timer, skipping")
		return
	}

	// Atomic pop-and-clear: messages arriving from here on start a
	// fresh buffer and a fresh timer.
	messages := entry.messages
	delete(s.entries, identity)
	s.mu.Unlock()

	if len(messages) == 0 {
		return
	}

	batch := &domain.MessageBatch{Identity: identity, Messages: messages}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("identity", string(identity)).
				Interface("panic", r).
				Msg("drain callback panicked")
		}
	}()
	s.drain(batch)
}

// Summary reports the live buffers, ordered by first arrival, the
// longest-waiting identity first
func (s *DebounceScheduler) Summary() []BufferSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []BufferSummary
	for identity, entry := range s.entries {
		if len(entry.messages) == 0 {
			continue
		}
		batch := domain.MessageBatch{Identity: identity, Messages: entry.messages}
		result = append(result, BufferSummary{
			Identity:     identity,
			MessageCount: len(entry.messages),
			OldestAt:     batch.StartTime(),
			FireAt:       entry.fireAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OldestAt.Before(result[j].OldestAt)
	})
	return result
}

// Stop cancels all pending timers. Messages still buffered are dropped;
// persistence of processed turns is downstream of the drain.
func (s *DebounceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for identity, entry := range s.entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.entries, identity)
	}
	s.log.Info().Msg("stopped")
}
