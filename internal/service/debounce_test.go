package service

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
)

type drainRecorder struct {
	mu      sync.Mutex
	batches []*domain.MessageBatch
	notify  chan *domain.MessageBatch
}

func newDrainRecorder() *drainRecorder {
	return &drainRecorder{notify: make(chan *domain.MessageBatch, 16)}
}

func (r *drainRecorder) drain(batch *domain.MessageBatch) {
	r.mu.Lock()
	r.batches = append(r.batches, batch)
	r.mu.Unlock()
	r.notify <- batch
}

func (r *drainRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *drainRecorder) wait(t *testing.T, timeout time.Duration) *domain.MessageBatch {
	t.Helper()
	select {
	case batch := <-r.notify:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for drain")
		return nil
	}
}

func bufMsg(identity domain.Identity, text string, at time.Time) domain.BufferedMessage {
	return domain.BufferedMessage{Identity: identity, Text: text, ReceivedAt: at}
}

func TestDebounce_SingleFiring(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(40*time.Millisecond, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-1", "Hi", now))

	batch := rec.wait(t, time.Second)
	if len(batch.Messages) != 1 || batch.Messages[0].Text != "Hi" {
		t.Errorf("unexpected batch: %+v", batch.Messages)
	}
}

func TestDebounce_RestartAccumulates(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(60*time.Millisecond, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-1", "Hi", now))
	time.Sleep(20 * time.Millisecond)
	s.OnMessageReceived(bufMsg("user-1", "how are you", now.Add(20*time.Millisecond)))
	time.Sleep(20 * time.Millisecond)
	s.OnMessageReceived(bufMsg("user-1", "you there?", now.Add(40*time.Millisecond)))

	batch := rec.wait(t, time.Second)
	if len(batch.Messages) != 3 {
		t.Fatalf("expected 3 messages in one batch, got %d", len(batch.Messages))
	}
	for i, want := range []string{"Hi", "how are you", "you there?"} {
		if batch.Messages[i].Text != want {
			t.Errorf("message %d = %q, want %q (receipt order)", i, batch.Messages[i].Text, want)
		}
	}
	if !batch.StartTime().Equal(now) {
		t.Errorf("batch start = %v, want earliest message time %v", batch.StartTime(), now)
	}

	// No second firing.
	time.Sleep(120 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected exactly one drain, got %d", rec.count())
	}
}

func TestDebounce_LateArrivalNotLost(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(50*time.Millisecond, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-1", "first", now))
	// Arrive just under the window edge; the restart must supersede the
	// first timer so both messages land in a single batch.
	time.Sleep(45 * time.Millisecond)
	s.OnMessageReceived(bufMsg("user-1", "second", now.Add(45*time.Millisecond)))

	batch := rec.wait(t, time.Second)
	if len(batch.Messages) != 2 {
		t.Fatalf("expected both messages in one batch, got %d", len(batch.Messages))
	}

	time.Sleep(120 * time.Millisecond)
	if rec.count() != 1 {
		t.Errorf("expected exactly one drain, got %d", rec.count())
	}
}

func TestDebounce_IdentitiesIndependent(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(40*time.Millisecond, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-a", "A1", now))
	s.OnMessageReceived(bufMsg("user-b", "B1", now))

	first := rec.wait(t, time.Second)
	second := rec.wait(t, time.Second)
	got := map[domain.Identity]int{
		first.Identity:  len(first.Messages),
		second.Identity: len(second.Messages),
	}
	if got["user-a"] != 1 || got["user-b"] != 1 {
		t.Errorf("unexpected batches: %v", got)
	}
}

func TestDebounce_NextBatchAfterDrain(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(30*time.Millisecond, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-1", "batch one", now))
	rec.wait(t, time.Second)

	s.OnMessageReceived(bufMsg("user-1", "batch two", now.Add(time.Second)))
	batch := rec.wait(t, time.Second)
	if len(batch.Messages) != 1 || batch.Messages[0].Text != "batch two" {
		t.Errorf("second batch should start fresh, got %+v", batch.Messages)
	}
}

func TestDebounce_PanicDoesNotCorruptState(t *testing.T) {
	fired := make(chan string, 4)
	scheduler := NewDebounceScheduler(30*time.Millisecond, func(batch *domain.MessageBatch) {
		fired <- batch.Messages[0].Text
		if batch.Messages[0].Text == "boom" {
			panic("drafter exploded")
		}
	}, zerolog.Nop())
	defer scheduler.Stop()

	scheduler.OnMessageReceived(bufMsg("user-1", "boom", time.Now()))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("first drain never ran")
	}

	// A subsequent message for the same identity still processes.
	scheduler.OnMessageReceived(bufMsg("user-1", "ok", time.Now()))
	select {
	case text := <-fired:
		if text != "ok" {
			t.Errorf("second drain = %q", text)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler state corrupted by panic")
	}
}

func TestDebounce_Summary(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(time.Minute, rec.drain, zerolog.Nop())
	defer s.Stop()

	now := time.Now()
	s.OnMessageReceived(bufMsg("user-2", "c", now.Add(-2*time.Second)))
	s.OnMessageReceived(bufMsg("user-1", "a", now))
	s.OnMessageReceived(bufMsg("user-1", "b", now.Add(time.Second)))

	summary := s.Summary()
	if len(summary) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(summary))
	}
	// Ordered by first arrival: user-2 has been waiting longest.
	if summary[0].Identity != "user-2" || summary[0].MessageCount != 1 {
		t.Errorf("summary[0] = %+v, want user-2 first", summary[0])
	}
	if summary[1].Identity != "user-1" || summary[1].MessageCount != 2 {
		t.Errorf("summary[1] = %+v, want user-1 with 2 messages", summary[1])
	}
	if !summary[1].OldestAt.Equal(now) {
		t.Errorf("user-1 oldest = %v, want %v", summary[1].OldestAt, now)
	}
}

func TestDebounce_StopCancelsTimers(t *testing.T) {
	rec := newDrainRecorder()
	s := NewDebounceScheduler(30*time.Millisecond, rec.drain, zerolog.Nop())

	s.OnMessageReceived(bufMsg("user-1", "pending", time.Now()))
	s.Stop()

	time.Sleep(80 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("drain fired after Stop")
	}
}
