package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func commandResult(v command.Variant, params command.Params) *voice.Result {
	return &voice.Result{
		ID:         "interaction-1",
		Mode:       voice.ModeCommand,
		Outcome:    voice.OutcomeCommand,
		Success:    true,
		Transcript: "set temperature to 72",
		Command:    v,
		Confidence: 0.9,
		Params:     params,
		Response:   "Setting temperature to 72 degrees.",
		Spoken:     true,
		StartedAt:  t0,
		Duration:   1500 * time.Millisecond,
	}
}

func entry(id, cmd, outcome string) Entry {
	return Entry{ID: id, Mode: "command", Outcome: outcome, Command: cmd, StartedAt: t0}
}

func TestNewEntryFromCommand(t *testing.T) {
	res := commandResult(command.ClimateControl, command.ClimateParams{Temperature: 72, Action: command.ActionSet})

	e, err := NewEntry(res)
	require.NoError(t, err)

	assert.Len(t, e.ID, 26)
	assert.Equal(t, "interaction-1", e.InteractionID)
	assert.Equal(t, "command", e.Mode)
	assert.Equal(t, "command", e.Outcome)
	assert.True(t, e.Success)
	assert.Equal(t, "climateControl", e.Command)
	assert.Equal(t, 0.9, e.Confidence)
	assert.Equal(t, map[string]any{"temperature": 72, "action": "set"}, e.Params)
	assert.Equal(t, int64(1500), e.DurationMs)
	assert.Equal(t, t0, e.StartedAt)
	assert.Empty(t, e.Error)
}

func TestNewEntryOmitsCommandForFailures(t *testing.T) {
	res := &voice.Result{
		ID:        "interaction-2",
		Mode:      voice.ModeCommand,
		Outcome:   voice.OutcomeTranscriptionFailed,
		Err:       voice.ErrEmptyTranscript,
		StartedAt: t0,
	}

	e, err := NewEntry(res)
	require.NoError(t, err)
	assert.Empty(t, e.Command)
	assert.Nil(t, e.Params)
	assert.Equal(t, "voice: empty transcript", e.Error)
	assert.False(t, e.Success)
}

func TestNewEntryKeepsUnknownOnNoMatch(t *testing.T) {
	res := commandResult(command.Unknown, command.NoParams{})
	res.Outcome = voice.OutcomeNoMatch
	res.Success = false

	e, err := NewEntry(res)
	require.NoError(t, err)
	assert.Equal(t, "unknown", e.Command)
	assert.Nil(t, e.Params)
}

func TestNewEntryDictation(t *testing.T) {
	e, err := NewEntry(&voice.Result{
		Mode:       voice.ModeDictation,
		Outcome:    voice.OutcomeDictation,
		Success:    true,
		Transcript: "pick up milk on the way home",
		StartedAt:  t0,
	})
	require.NoError(t, err)
	assert.Empty(t, e.Command)
	assert.Equal(t, "pick up milk on the way home", e.Transcript)
}

func TestEntryIDsSortByStart(t *testing.T) {
	early, err := NewEntry(&voice.Result{StartedAt: t0})
	require.NoError(t, err)
	late, err := NewEntry(&voice.Result{StartedAt: t0.Add(time.Second)})
	require.NoError(t, err)

	assert.Less(t, early.ID, late.ID)
}

func TestMemoryStoreRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10)

	require.NoError(t, store.Add(ctx, entry("1", "lockDoors", "command")))
	require.NoError(t, store.Add(ctx, entry("2", "unknown", "no-match")))
	require.NoError(t, store.Add(ctx, entry("3", "lockDoors", "command")))
	require.NoError(t, store.Add(ctx, entry("4", "", "transcription-failed")))

	all, err := store.Recent(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "4", all[0].ID)
	assert.Equal(t, "1", all[3].ID)

	locks, err := store.Recent(ctx, Query{Command: "lockDoors"})
	require.NoError(t, err)
	require.Len(t, locks, 2)
	assert.Equal(t, "3", locks[0].ID)

	misses, err := store.Recent(ctx, Query{Outcome: "no-match"})
	require.NoError(t, err)
	require.Len(t, misses, 1)
	assert.Equal(t, "2", misses[0].ID)

	limited, err := store.Recent(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryStoreEvictsButKeepsStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Add(ctx, entry(fmt.Sprint(i), "fuelLevel", "command")))
	}
	assert.Equal(t, 3, store.Len())

	recent, err := store.Recent(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, "5", recent[0].ID)
	assert.Equal(t, "3", recent[2].ID)

	// evicted IDs may be reused
	require.NoError(t, store.Add(ctx, entry("1", "fuelLevel", "command")))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 6, stats.ByCommand["fuelLevel"])
	assert.Equal(t, 6, stats.ByOutcome["command"])
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.Add(ctx, entry("1", "lockDoors", "command")))
	require.NoError(t, store.Add(ctx, entry("2", "", "cancelled")))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, map[string]int{"lockDoors": 1}, stats.ByCommand)
	assert.Equal(t, map[string]int{"command": 1, "cancelled": 1}, stats.ByOutcome)

	// returned maps are copies
	stats.ByCommand["lockDoors"] = 99
	again, _ := store.Stats(ctx)
	assert.Equal(t, 1, again.ByCommand["lockDoors"])
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5)

	assert.ErrorIs(t, store.Add(ctx, Entry{}), ErrNoID)
	require.NoError(t, store.Add(ctx, entry("a", "help", "command")))
	assert.ErrorIs(t, store.Add(ctx, entry("a", "help", "command")), ErrDuplicate)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Add(ctx, entry("b", "help", "command")), ErrClosed)
	_, err := store.Recent(ctx, Query{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = store.Stats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(5)

	e, err := Record(ctx, store, commandResult(command.LockDoors, command.NoParams{}))
	require.NoError(t, err)
	assert.Equal(t, "lockDoors", e.Command)

	recent, _ := store.Recent(ctx, Query{})
	require.Len(t, recent, 1)
	assert.Equal(t, e.ID, recent[0].ID)

	store.Close()
	_, err = Record(ctx, store, commandResult(command.LockDoors, command.NoParams{}))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestPostgresRowMapping(t *testing.T) {
	e := Entry{
		ID:         "01HZX",
		Mode:       "command",
		Outcome:    "command",
		Success:    true,
		Command:    "navigate",
		Confidence: 0.8,
		Params:     map[string]any{"destination": "the airport"},
		StartedAt:  t0,
		DurationMs: 900,
	}

	args, err := toArgs(e)
	require.NoError(t, err)
	assert.Equal(t, sql.NullString{}, args["transcript"])
	assert.Equal(t, sql.NullString{String: `{"destination":"the airport"}`, Valid: true}, args["params"])
	assert.Equal(t, sql.NullFloat64{Float64: 0.8, Valid: true}, args["confidence"])

	row := entryRow{
		ID:         e.ID,
		Mode:       e.Mode,
		Outcome:    e.Outcome,
		Success:    true,
		Command:    sql.NullString{String: "navigate", Valid: true},
		Confidence: sql.NullFloat64{Float64: 0.8, Valid: true},
		Params:     args["params"].(sql.NullString),
		StartedAt:  t0.In(time.FixedZone("PST", -8*3600)),
		DurationMs: 900,
	}
	got, err := row.entry()
	require.NoError(t, err)
	assert.Equal(t, e, got)

	row.Params = sql.NullString{String: "{", Valid: true}
	_, err = row.entry()
	assert.Error(t, err)
}

func TestPostgresConfidenceNullWithoutCommand(t *testing.T) {
	args, err := toArgs(Entry{ID: "x", Mode: "dictation", Outcome: "dictation"})
	require.NoError(t, err)
	assert.False(t, args["confidence"].(sql.NullFloat64).Valid)
	assert.False(t, args["params"].(sql.NullString).Valid)
}

func TestParseCounts(t *testing.T) {
	got := parseCounts(map[string]string{"lockDoors": "3", "help": "x"})
	assert.Equal(t, map[string]int{"lockDoors": 3}, got)
}

func TestRedisKeys(t *testing.T) {
	r := NewRedisStoreFromClient(nil, "", 0)
	assert.Equal(t, "autovoice:history:entries", r.key("entries"))
	assert.Equal(t, 1000, r.capacity)
}
