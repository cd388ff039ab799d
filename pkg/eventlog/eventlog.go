// Package eventlog is a scheduler.Listener that appends every engine
// event to an embedded DuckDB table, queryable for post-hoc incident
// review. It is a collaborator wired in at Engine construction time, not
// a core engine responsibility: the engine itself persists nothing.
package eventlog

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/arrowlabs/rrlsched/pkg/scheduler"
)

const schema = `
CREATE TABLE IF NOT EXISTS scheduler_events (
	id              BIGINT PRIMARY KEY,
	kind            VARCHAR NOT NULL,
	request_id      VARCHAR,
	attempt_number  INTEGER,
	cause           VARCHAR,
	detail          VARCHAR,
	occurred_at     TIMESTAMP NOT NULL
)`

// Sink is a scheduler.Listener backed by an embedded DuckDB database.
type Sink struct {
	db     *sql.DB
	log    *zap.SugaredLogger
	nextID int64
}

// Open creates (or attaches to) a DuckDB file at path and ensures the
// scheduler_events table exists.
func Open(path string) (*Sink, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Sink{db: db, log: zap.S().Named("eventlog")}, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

// OnEvent implements scheduler.Listener. Failures are logged, not
// propagated: a down audit sink must never affect request processing.
func (s *Sink) OnEvent(e scheduler.Event) {
	s.nextID++

	var cause string
	if e.Cause != nil {
		cause = e.Cause.Error()
	}

	query, args, err := sq.Insert("scheduler_events").
		Columns("id", "kind", "request_id", "attempt_number", "cause", "detail", "occurred_at").
		Values(s.nextID, string(e.Kind), e.RequestID, e.AttemptNumber, cause, e.Detail, e.Timestamp).
		ToSql()
	if err != nil {
		s.log.Warnw("failed to build event insert", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.log.Warnw("failed to persist scheduler event", "error", err, "kind", e.Kind)
	}
}

// Recent returns the most recently persisted events, newest first,
// bounded by limit.
func (s *Sink) Recent(ctx context.Context, limit uint64) ([]Record, error) {
	query, args, err := sq.Select("kind", "request_id", "attempt_number", "cause", "detail", "occurred_at").
		From("scheduler_events").
		OrderBy("id DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var attempt sql.NullInt64
		var cause, requestID, detail sql.NullString
		if err := rows.Scan(&r.Kind, &requestID, &attempt, &cause, &detail, &r.OccurredAt); err != nil {
			return nil, err
		}
		r.RequestID = requestID.String
		r.AttemptNumber = int(attempt.Int64)
		r.Cause = cause.String
		r.Detail = detail.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Record is one row of the scheduler_events audit table.
type Record struct {
	Kind          string
	RequestID     string
	AttemptNumber int
	Cause         string
	Detail        string
	OccurredAt    time.Time
}
