package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlDecisions is the decision-log schema. Durations are stored as
// nanoseconds so records round-trip through time.Duration without loss.
const ddlDecisions = `
CREATE TABLE IF NOT EXISTS readback_decisions (
    id                  UUID         PRIMARY KEY,
    session_id          TEXT         NOT NULL,
    fragment            TEXT         NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
    outcome             TEXT         NOT NULL,
    phrase_id           TEXT         NOT NULL DEFAULT '',
    canonical           TEXT         NOT NULL DEFAULT '',
    variant             TEXT         NOT NULL DEFAULT '',
    suggested_phrase_id TEXT         NOT NULL DEFAULT '',
    suggestion_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
    match_ns            BIGINT       NOT NULL DEFAULT 0,
    dispatch_ns         BIGINT       NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_readback_decisions_session
    ON readback_decisions (session_id, created_at);

CREATE INDEX IF NOT EXISTS idx_readback_decisions_outcome
    ON readback_decisions (outcome);

CREATE INDEX IF NOT EXISTS idx_readback_decisions_phrase
    ON readback_decisions (phrase_id);
`

// Store is a PostgreSQL-backed [Recorder]. Beyond recording it supports
// filtered history queries, which is what makes the audit trail useful for
// phrasebook tuning: "show me everything that missed in the last hour".
//
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to the database at dsn, verifies the connection, and
// runs [Migrate] so the decision table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("audit store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates or ensures the decision table and its indexes exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlDecisions); err != nil {
		return fmt.Errorf("audit migrate: %w", err)
	}
	return nil
}

// Record implements [Recorder].
func (s *Store) Record(ctx context.Context, d Decision) error {
	const q = `
		INSERT INTO readback_decisions
		    (id, session_id, fragment, confidence, outcome, phrase_id, canonical,
		     variant, suggested_phrase_id, suggestion_score, match_ns, dispatch_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.pool.Exec(ctx, q,
		d.ID,
		d.SessionID,
		d.Fragment,
		d.Confidence,
		string(d.Outcome),
		d.PhraseID,
		d.Canonical,
		d.Variant,
		d.SuggestedPhraseID,
		d.SuggestionScore,
		d.MatchDuration.Nanoseconds(),
		d.DispatchDuration.Nanoseconds(),
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit store: record: %w", err)
	}
	return nil
}

// Filter narrows a [Store.Search] query. Zero-valued fields are ignored.
type Filter struct {
	// SessionID restricts results to one session.
	SessionID string

	// Outcome restricts results to one outcome.
	Outcome Outcome

	// PhraseID restricts results to decisions that selected this phrase.
	PhraseID string

	// Since restricts results to decisions created at or after this time.
	Since time.Time

	// Limit caps the number of returned rows; 0 means no cap.
	Limit int
}

// Search returns decisions matching f, newest first.
func (s *Store) Search(ctx context.Context, f Filter) ([]Decision, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"TRUE"}
	if f.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(f.SessionID))
	}
	if f.Outcome != "" {
		conditions = append(conditions, "outcome = "+next(string(f.Outcome)))
	}
	if f.PhraseID != "" {
		conditions = append(conditions, "phrase_id = "+next(f.PhraseID))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= "+next(f.Since))
	}

	q := "SELECT id, session_id, fragment, confidence, outcome, phrase_id, canonical,\n" +
		"       variant, suggested_phrase_id, suggestion_score, match_ns, dispatch_ns, created_at\n" +
		"FROM   readback_decisions\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY created_at DESC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit store: search: %w", err)
	}
	return collectDecisions(rows)
}

// Ping verifies database connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements [Recorder]. It releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// collectDecisions scans pgx rows into a slice of Decision values.
func collectDecisions(rows pgx.Rows) ([]Decision, error) {
	decisions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Decision, error) {
		var (
			d          Decision
			outcome    string
			matchNS    int64
			dispatchNS int64
		)
		if err := row.Scan(
			&d.ID,
			&d.SessionID,
			&d.Fragment,
			&d.Confidence,
			&outcome,
			&d.PhraseID,
			&d.Canonical,
			&d.Variant,
			&d.SuggestedPhraseID,
			&d.SuggestionScore,
			&matchNS,
			&dispatchNS,
			&d.CreatedAt,
		); err != nil {
			return Decision{}, err
		}
		d.Outcome = Outcome(outcome)
		d.MatchDuration = time.Duration(matchNS)
		d.DispatchDuration = time.Duration(dispatchNS)
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit store: scan rows: %w", err)
	}
	if decisions == nil {
		decisions = []Decision{}
	}
	return decisions, nil
}

// Ensure Store implements Recorder at compile time.
var _ Recorder = (*Store)(nil)
