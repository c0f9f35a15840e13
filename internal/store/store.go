package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store is the postgres-backed summary cache. Entries are immutable:
// the first write for a (fingerprint, detail level) pair wins and
// later writes are no-ops, so a torn pipeline can never overwrite a
// published summary with a different one.
type Store struct {
	DB *sql.DB
}

// SummaryRecord is one cached summarization result.
type SummaryRecord struct {
	Fingerprint string
	DetailLevel string
	Summary     string
	Model       string
	Truncated   bool
	CreatedAt   time.Time
}

// NewWithDSN opens a postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// InsertSummary persists a summary for a fingerprint and detail level.
// It returns false when an entry already exists; the existing entry is
// left untouched.
func (s *Store) InsertSummary(ctx context.Context, rec SummaryRecord) (bool, error) {
	if rec.Fingerprint == "" || rec.DetailLevel == "" {
		return false, fmt.Errorf("fingerprint and detail_level are required")
	}
	var inserted bool
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO summaries (fingerprint, detail_level, summary, model, truncated, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (fingerprint, detail_level) DO NOTHING
RETURNING true;
`, rec.Fingerprint, rec.DetailLevel, rec.Summary, rec.Model, rec.Truncated).Scan(&inserted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert summary: %w", err)
	}
	return inserted, nil
}

// GetSummary looks up a cached summary. The bool reports whether a
// record was found.
func (s *Store) GetSummary(ctx context.Context, fingerprint, detailLevel string) (SummaryRecord, bool, error) {
	var rec SummaryRecord
	err := s.DB.QueryRowContext(ctx, `
SELECT fingerprint, detail_level, summary, model, truncated, created_at
FROM summaries
WHERE fingerprint = $1 AND detail_level = $2;
`, fingerprint, detailLevel).Scan(&rec.Fingerprint, &rec.DetailLevel, &rec.Summary, &rec.Model, &rec.Truncated, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return SummaryRecord{}, false, nil
	}
	if err != nil {
		return SummaryRecord{}, false, fmt.Errorf("get summary: %w", err)
	}
	return rec, true, nil
}

// InvalidateSummaries removes every cached entry. Used when prompt
// templates change; concurrent readers see either the old row or none.
func (s *Store) InvalidateSummaries(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM summaries;`)
	if err != nil {
		return 0, fmt.Errorf("invalidate summaries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
