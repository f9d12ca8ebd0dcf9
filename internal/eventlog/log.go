// Package eventlog keeps the time-ordered, bounded log of analysis events
// produced during a session.
//
// Append is the only validation point: events stamped in the future or
// before the session started are rejected and counted, never stored.
// All public methods are safe for concurrent use.
package eventlog

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/socioscope/internal/constants"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
)

var (
	// ErrFutureEvent rejects an event stamped after the current time.
	ErrFutureEvent = errors.New("event timestamp is in the future")

	// ErrBeforeSession rejects an event stamped before the session started.
	ErrBeforeSession = errors.New("event timestamp predates session start")
)

// Log is an append-only, time-ordered event log with bounded retention.
type Log struct {
	mu           sync.RWMutex
	sessionStart time.Time
	capacity     int
	events       []models.AnalysisEvent
	accepted     int
	rejected     int
	evicted      int

	nowFunc func() time.Time
	logger  *slog.Logger
}

// New creates a log for a session starting at sessionStart. A capacity of
// zero or less uses the default retention. A nil logger discards output.
func New(sessionStart time.Time, capacity int, logger *slog.Logger) *Log {
	if capacity <= 0 {
		capacity = constants.DefaultEventRetention
	}
	return &Log{
		sessionStart: sessionStart,
		capacity:     capacity,
		nowFunc:      time.Now,
		logger:       logging.OrDiscard(logger),
	}
}

// SetClock replaces the clock used to detect future timestamps.
func (l *Log) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowFunc = now
}

// SessionStart returns the session start time.
func (l *Log) SessionStart() time.Time {
	return l.sessionStart
}

// Append validates and stores an event. A missing id is filled with a new
// uuid. Events are kept ordered by timestamp; an event equal in time to
// existing ones goes after them. When the log is full the oldest event is
// evicted.
func (l *Log) Append(ev models.AnalysisEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if ev.Timestamp.After(now) {
		return l.reject(ev, ErrFutureEvent)
	}
	if ev.Timestamp.Before(l.sessionStart) {
		return l.reject(ev, ErrBeforeSession)
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	i := sort.Search(len(l.events), func(i int) bool {
		return l.events[i].Timestamp.After(ev.Timestamp)
	})
	l.events = append(l.events, models.AnalysisEvent{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = ev
	l.accepted++

	if over := len(l.events) - l.capacity; over > 0 {
		n := copy(l.events, l.events[over:])
		l.events = l.events[:n]
		l.evicted += over
	}
	return nil
}

// AppendAll appends each event and returns the number accepted.
func (l *Log) AppendAll(events []models.AnalysisEvent) int {
	n := 0
	for _, ev := range events {
		if l.Append(ev) == nil {
			n++
		}
	}
	return n
}

// reject counts and logs a rejected event. Callers hold l.mu.
func (l *Log) reject(ev models.AnalysisEvent, reason error) error {
	l.rejected++
	l.logger.Warn("analysis event rejected",
		"category", ev.Category,
		"timestamp", ev.Timestamp,
		"session_start", l.sessionStart,
		"reason", reason)
	return fmt.Errorf("append %s event at %s: %w", ev.Category, ev.Timestamp.Format(time.RFC3339), reason)
}

// Filter selects events in Query. Zero values match everything.
type Filter struct {
	Categories  []models.EventCategory
	MinSeverity models.Severity
	Since       time.Time
	Until       time.Time
	// Limit keeps the most recent matches when positive.
	Limit int
}

func (f Filter) matches(ev models.AnalysisEvent) bool {
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if ev.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if ev.Severity < f.MinSeverity {
		return false
	}
	if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Query returns matching events in time order. The returned slice is a copy.
func (l *Log) Query(f Filter) []models.AnalysisEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.AnalysisEvent
	for _, ev := range l.events {
		if f.matches(ev) {
			out = append(out, ev)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// All returns every retained event in time order.
func (l *Log) All() []models.AnalysisEvent {
	return l.Query(Filter{})
}

// Len returns the number of retained events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Capacity returns the retention cap.
func (l *Log) Capacity() int {
	return l.capacity
}

// Accepted returns the number of events ever accepted, including evicted ones.
func (l *Log) Accepted() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accepted
}

// Rejected returns the number of events rejected by validation.
func (l *Log) Rejected() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rejected
}

// Evicted returns the number of events dropped by retention.
func (l *Log) Evicted() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evicted
}
