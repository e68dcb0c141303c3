package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS voice_interactions (
			id             TEXT PRIMARY KEY,
			interaction_id TEXT,
			mode           TEXT NOT NULL,
			outcome        TEXT NOT NULL,
			success        BOOLEAN NOT NULL DEFAULT FALSE,
			transcript     TEXT,
			command        TEXT,
			confidence     DOUBLE PRECISION,
			params         TEXT,
			response       TEXT,
			degraded       BOOLEAN NOT NULL DEFAULT FALSE,
			error          TEXT,
			started_at     TIMESTAMPTZ NOT NULL,
			duration_ms    BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS voice_interactions_started_at_idx ON voice_interactions (started_at DESC);
		CREATE INDEX IF NOT EXISTS voice_interactions_command_idx ON voice_interactions (command);
	`

	queryInsertEntry = `
		INSERT INTO voice_interactions (
			id, interaction_id, mode, outcome, success,
			transcript, command, confidence, params, response,
			degraded, error, started_at, duration_ms
		) VALUES (
			:id, :interaction_id, :mode, :outcome, :success,
			:transcript, :command, :confidence, :params, :response,
			:degraded, :error, :started_at, :duration_ms
		)
	`

	queryRecentEntries = `
		SELECT
			id, interaction_id, mode, outcome, success,
			transcript, command, confidence, params, response,
			degraded, error, started_at, duration_ms
		FROM voice_interactions
		WHERE (:command = '' OR command = :command)
		  AND (:outcome = '' OR outcome = :outcome)
		ORDER BY started_at DESC, id DESC
		LIMIT :limit
	`

	queryCountTotal     = `SELECT COUNT(*) FROM voice_interactions`
	queryCountByCommand = `SELECT command AS key, COUNT(*) AS n FROM voice_interactions WHERE command IS NOT NULL AND command <> '' GROUP BY command`
	queryCountByOutcome = `SELECT outcome AS key, COUNT(*) AS n FROM voice_interactions GROUP BY outcome`
)

// pgUniqueViolation is the SQLSTATE for a duplicate key.
const pgUniqueViolation = "23505"

type entryRow struct {
	ID            string          `db:"id"`
	InteractionID sql.NullString  `db:"interaction_id"`
	Mode          string          `db:"mode"`
	Outcome       string          `db:"outcome"`
	Success       bool            `db:"success"`
	Transcript    sql.NullString  `db:"transcript"`
	Command       sql.NullString  `db:"command"`
	Confidence    sql.NullFloat64 `db:"confidence"`
	Params        sql.NullString  `db:"params"`
	Response      sql.NullString  `db:"response"`
	Degraded      bool            `db:"degraded"`
	Error         sql.NullString  `db:"error"`
	StartedAt     time.Time       `db:"started_at"`
	DurationMs    int64           `db:"duration_ms"`
}

type countRow struct {
	Key string `db:"key"`
	N   int    `db:"n"`
}

// PostgresStore keeps entries in a voice_interactions table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// OpenPostgres connects with the lib/pq driver and returns a store.
// Call Migrate before first use on an empty database.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: postgres connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgresStore(db, logger), nil
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "history.postgres"),
	}
}

// Migrate creates the table and indexes if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, querySchema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Add inserts an entry.
func (p *PostgresStore) Add(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return ErrNoID
	}
	args, err := toArgs(e)
	if err != nil {
		return err
	}

	query, params, err := sqlx.Named(queryInsertEntry, args)
	if err != nil {
		return fmt.Errorf("history: build insert: %w", err)
	}
	query = p.db.Rebind(query)

	if _, err := p.db.ExecContext(ctx, query, params...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		p.logger.Error("failed to insert entry", "id", e.ID, "error", err)
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns matching entries, newest first.
func (p *PostgresStore) Recent(ctx context.Context, q Query) ([]Entry, error) {
	query, params, err := sqlx.Named(queryRecentEntries, map[string]interface{}{
		"command": q.Command,
		"outcome": q.Outcome,
		"limit":   q.limit(),
	})
	if err != nil {
		return nil, fmt.Errorf("history: build select: %w", err)
	}
	query = p.db.Rebind(query)

	var rows []entryRow
	if err := p.db.SelectContext(ctx, &rows, query, params...); err != nil {
		return nil, fmt.Errorf("history: select: %w", err)
	}

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			p.logger.Warn("skipping undecodable entry", "id", row.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Stats aggregates counts in the database.
func (p *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := newStats()
	if err := p.db.GetContext(ctx, &stats.Total, queryCountTotal); err != nil {
		return Stats{}, fmt.Errorf("history: count: %w", err)
	}

	var rows []countRow
	if err := p.db.SelectContext(ctx, &rows, queryCountByCommand); err != nil {
		return Stats{}, fmt.Errorf("history: count by command: %w", err)
	}
	for _, r := range rows {
		stats.ByCommand[r.Key] = r.N
	}

	rows = rows[:0]
	if err := p.db.SelectContext(ctx, &rows, queryCountByOutcome); err != nil {
		return Stats{}, fmt.Errorf("history: count by outcome: %w", err)
	}
	for _, r := range rows {
		stats.ByOutcome[r.Key] = r.N
	}
	return stats, nil
}

// Close closes the database.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func toArgs(e Entry) (map[string]interface{}, error) {
	var params sql.NullString
	if len(e.Params) > 0 {
		data, err := json.MarshalToString(e.Params)
		if err != nil {
			return nil, fmt.Errorf("history: encode params: %w", err)
		}
		params = sql.NullString{String: data, Valid: true}
	}

	return map[string]interface{}{
		"id":             e.ID,
		"interaction_id": nullString(e.InteractionID),
		"mode":           e.Mode,
		"outcome":        e.Outcome,
		"success":        e.Success,
		"transcript":     nullString(e.Transcript),
		"command":        nullString(e.Command),
		"confidence":     sql.NullFloat64{Float64: e.Confidence, Valid: e.Command != ""},
		"params":         params,
		"response":       nullString(e.Response),
		"degraded":       e.Degraded,
		"error":          nullString(e.Error),
		"started_at":     e.StartedAt,
		"duration_ms":    e.DurationMs,
	}, nil
}

func (r entryRow) entry() (Entry, error) {
	e := Entry{
		ID:            r.ID,
		InteractionID: r.InteractionID.String,
		Mode:          r.Mode,
		Outcome:       r.Outcome,
		Success:       r.Success,
		Transcript:    r.Transcript.String,
		Command:       r.Command.String,
		Confidence:    r.Confidence.Float64,
		Response:      r.Response.String,
		Degraded:      r.Degraded,
		Error:         r.Error.String,
		StartedAt:     r.StartedAt.UTC(),
		DurationMs:    r.DurationMs,
	}
	if r.Params.Valid && r.Params.String != "" {
		if err := json.UnmarshalFromString(r.Params.String, &e.Params); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify PostgresStore implements Store at compile time.
var _ Store = (*PostgresStore)(nil)
