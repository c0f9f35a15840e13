package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestInsertSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	rec := SummaryRecord{
		Fingerprint: "fp-1",
		DetailLevel: "normal",
		Summary:     "summary body",
		Model:       "gemini-1.5-flash",
	}

	query := regexp.QuoteMeta(`
INSERT INTO summaries (fingerprint, detail_level, summary, model, truncated, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (fingerprint, detail_level) DO NOTHING
RETURNING true;
`)
	mock.ExpectQuery(query).
		WithArgs(rec.Fingerprint, rec.DetailLevel, rec.Summary, rec.Model, rec.Truncated).
		WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

	inserted, err := st.InsertSummary(context.Background(), rec)
	if err != nil {
		t.Fatalf("InsertSummary: %v", err)
	}
	if !inserted {
		t.Fatalf("expected insert to win")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertSummaryExistingEntryIsKept(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("INSERT INTO summaries").
		WithArgs("fp-1", "normal", "other text", "gemini-1.5-flash", false).
		WillReturnRows(sqlmock.NewRows([]string{"bool"})) // ON CONFLICT: no row

	inserted, err := st.InsertSummary(context.Background(), SummaryRecord{
		Fingerprint: "fp-1",
		DetailLevel: "normal",
		Summary:     "other text",
		Model:       "gemini-1.5-flash",
	})
	if err != nil {
		t.Fatalf("InsertSummary: %v", err)
	}
	if inserted {
		t.Fatalf("conflicting insert must not report success")
	}
}

func TestGetSummaryRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	created := time.Now()
	rows := sqlmock.NewRows([]string{"fingerprint", "detail_level", "summary", "model", "truncated", "created_at"}).
		AddRow("fp-1", "normal", "exact summary text", "gemini-1.5-flash", true, created)
	mock.ExpectQuery("SELECT fingerprint, detail_level, summary, model, truncated, created_at").
		WithArgs("fp-1", "normal").
		WillReturnRows(rows)

	rec, found, err := st.GetSummary(context.Background(), "fp-1", "normal")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if !found {
		t.Fatalf("expected record")
	}
	if rec.Summary != "exact summary text" {
		t.Fatalf("summary round-trip mismatch: %q", rec.Summary)
	}
	if !rec.Truncated {
		t.Fatalf("truncated flag lost")
	}
}

func TestGetSummaryMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("SELECT fingerprint, detail_level, summary").
		WithArgs("fp-missing", "normal").
		WillReturnRows(sqlmock.NewRows([]string{"fingerprint", "detail_level", "summary", "model", "truncated", "created_at"}))

	_, found, err := st.GetSummary(context.Background(), "fp-missing", "normal")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if found {
		t.Fatalf("expected cache miss")
	}
}

func TestInvalidateSummaries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM summaries;`)).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := st.InvalidateSummaries(context.Background())
	if err != nil {
		t.Fatalf("InvalidateSummaries: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 rows removed, got %d", n)
	}
}
