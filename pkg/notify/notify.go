// Package notify carries transient operator notices from the inspector to
// whatever is presenting it.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDuration is how long a notice stays visible.
const DefaultDuration = 4 * time.Second

// Severity classifies a notice.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Notice is a single transient message.
type Notice struct {
	ID        int
	Message   string
	Severity  Severity
	RaisedAt  time.Time
	ExpiresAt time.Time
}

// Sink receives notices. Implementations must be safe for concurrent use.
type Sink interface {
	Notify(message string, severity Severity)
}

// Board keeps recently raised notices until they expire or are dismissed.
type Board struct {
	clock    clockwork.Clock
	duration time.Duration

	mu      sync.Mutex
	nextID  int
	notices []Notice
}

// NewBoard returns a Board whose notices last for duration. A nil clock uses
// the real clock and a non-positive duration uses DefaultDuration.
func NewBoard(clock clockwork.Clock, duration time.Duration) *Board {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Board{clock: clock, duration: duration}
}

// Notify records a notice.
func (b *Board) Notify(message string, severity Severity) {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	b.nextID++
	b.notices = append(b.notices, Notice{
		ID:        b.nextID,
		Message:   message,
		Severity:  severity,
		RaisedAt:  now,
		ExpiresAt: now.Add(b.duration),
	})
}

// Active returns unexpired notices, oldest first.
func (b *Board) Active() []Notice {
	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	return append([]Notice(nil), b.notices...)
}

// Dismiss removes a notice before it expires. It reports whether the notice
// was still active.
func (b *Board) Dismiss(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.notices {
		if n.ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// prune drops expired notices. Caller holds mu.
func (b *Board) prune(now time.Time) {
	kept := b.notices[:0]
	for _, n := range b.notices {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	b.notices = kept
}

// LogSink writes notices to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify logs the notice at a level matching its severity.
func (s LogSink) Notify(message string, severity Severity) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if severity == SeverityError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "notice", "severity", string(severity), "message", message)
}

// Fanout delivers every notice to each sink in order.
type Fanout []Sink

// Notify forwards to all sinks.
func (f Fanout) Notify(message string, severity Severity) {
	for _, s := range f {
		if s != nil {
			s.Notify(message, severity)
		}
	}
}

// Discard drops every notice.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(string, Severity) {}
