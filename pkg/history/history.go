// Package history records finished voice interactions.
//
// Every completed voice.Result can be turned into an Entry and appended to a
// Store. Stores return entries newest first and keep per-command and
// per-outcome counters so a dashboard can show what drivers actually say.
package history

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// Sentinel errors for common conditions.
var (
	// ErrNoID is returned when an entry without an ID is added.
	ErrNoID = errors.New("history: entry id required")

	// ErrDuplicate is returned when an entry with the same ID already exists.
	ErrDuplicate = errors.New("history: duplicate entry")

	// ErrClosed is returned by a store after Close.
	ErrClosed = errors.New("history: store closed")
)

// DefaultLimit caps Recent when Query.Limit is zero.
const DefaultLimit = 50

// Entry is one stored interaction.
type Entry struct {
	ID            string         `json:"id"`
	InteractionID string         `json:"interactionId"`
	Mode          string         `json:"mode"`
	Outcome       string         `json:"outcome"`
	Success       bool           `json:"success"`
	Transcript    string         `json:"transcript,omitempty"`
	Command       string         `json:"command,omitempty"`
	Confidence    float64        `json:"confidence"`
	Params        map[string]any `json:"params,omitempty"`
	Response      string         `json:"response,omitempty"`
	Degraded      bool           `json:"degraded,omitempty"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"startedAt"`
	DurationMs    int64          `json:"durationMs"`
}

// NewEntry builds an Entry from a finished interaction.
// The ID is a ULID stamped with the interaction start time, so IDs sort
// in the order interactions began.
func NewEntry(res *voice.Result) (Entry, error) {
	started := res.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	id, err := newID(started)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:            id,
		InteractionID: res.ID,
		Mode:          string(res.Mode),
		Outcome:       string(res.Outcome),
		Success:       res.Success,
		Transcript:    res.Transcript,
		Response:      res.Response,
		Degraded:      res.Degraded,
		Error:         res.ErrorText(),
		StartedAt:     started.UTC(),
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Mode == voice.ModeCommand && res.Outcome != voice.OutcomeStartFailed &&
		res.Outcome != voice.OutcomeTranscriptionFailed && res.Outcome != voice.OutcomeCancelled {
		e.Command = res.Command.String()
		e.Confidence = res.Confidence
		if params := res.Parameters(); len(params) > 0 {
			e.Params = params
		}
	}
	return e, nil
}

func newID(t time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(t), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Query filters Recent.
type Query struct {
	// Command keeps only entries for this command name, e.g. "lockDoors".
	Command string `query:"command"`

	// Outcome keeps only entries with this outcome, e.g. "no-match".
	Outcome string `query:"outcome"`

	// Limit caps the result. Zero uses DefaultLimit.
	Limit int `query:"limit"`
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

func (q Query) match(e Entry) bool {
	if q.Command != "" && e.Command != q.Command {
		return false
	}
	if q.Outcome != "" && e.Outcome != q.Outcome {
		return false
	}
	return true
}

// Stats counts stored interactions.
type Stats struct {
	Total     int            `json:"total"`
	ByCommand map[string]int `json:"byCommand"`
	ByOutcome map[string]int `json:"byOutcome"`
}

func newStats() Stats {
	return Stats{
		ByCommand: make(map[string]int),
		ByOutcome: make(map[string]int),
	}
}

func (s *Stats) count(e Entry) {
	s.Total++
	s.ByOutcome[e.Outcome]++
	if e.Command != "" {
		s.ByCommand[e.Command]++
	}
}

// Store persists entries.
type Store interface {
	// Add appends an entry.
	Add(ctx context.Context, e Entry) error

	// Recent returns matching entries, newest first.
	Recent(ctx context.Context, q Query) ([]Entry, error)

	// Stats returns counters over every entry ever added.
	Stats(ctx context.Context) (Stats, error)

	// Close releases resources.
	Close() error
}

// Record converts res and adds it to store.
func Record(ctx context.Context, store Store, res *voice.Result) (Entry, error) {
	e, err := NewEntry(res)
	if err != nil {
		return Entry{}, err
	}
	if err := store.Add(ctx, e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
