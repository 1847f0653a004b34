// Package store persists an archive of analyzed videos and their
// question/answer exchanges. The archive is a record of what was asked,
// not session state — the live conversation lives in the chat package
// and is never reconstructed from here.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Analysis is one archived video extraction.
type Analysis struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	FromCaptions bool      `json:"from_captions"`
	ContentChars int       `json:"content_chars"`
	CreatedAt    time.Time `json:"created_at"`
}

// ExchangeRecord is one archived question/answer pair.
type ExchangeRecord struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the archive backed by SQLite. All public methods are safe
// for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates an archive store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id            TEXT PRIMARY KEY,
		url           TEXT NOT NULL,
		title         TEXT NOT NULL,
		source        TEXT NOT NULL,
		from_captions INTEGER NOT NULL,
		content_chars INTEGER NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS exchanges (
		id          TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL REFERENCES analyses(id),
		question    TEXT NOT NULL,
		answer      TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_analysis ON exchanges(analysis_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordAnalysis archives a completed extraction and returns its ID.
func (s *Store) RecordAnalysis(url, title, source string, fromCaptions bool, contentChars int) (string, error) {
	id := uuid.NewString()
	fromCap := 0
	if fromCaptions {
		fromCap = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO analyses (id, url, title, source, from_captions, content_chars, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, url, title, source, fromCap, contentChars,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("record analysis: %w", err)
	}
	return id, nil
}

// RecordExchange archives one question/answer pair under an analysis.
func (s *Store) RecordExchange(analysisID, question, answer string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO exchanges (id, analysis_id, question, answer, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, analysisID, question, answer,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("record exchange: %w", err)
	}
	return id, nil
}

// RecentAnalyses returns the most recent analyses, newest first.
func (s *Store) RecentAnalyses(limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, url, title, source, from_captions, content_chars, created_at
		 FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		var a Analysis
		var fromCap int
		var created string
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Source, &fromCap, &a.ContentChars, &created); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.FromCaptions = fromCap != 0
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ExchangesFor returns an analysis's exchanges in ask order.
func (s *Store) ExchangesFor(analysisID string) ([]ExchangeRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, analysis_id, question, answer, created_at
		 FROM exchanges WHERE analysis_id = ? ORDER BY rowid`, analysisID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []ExchangeRecord
	for rows.Next() {
		var e ExchangeRecord
		var created string
		if err := rows.Scan(&e.ID, &e.AnalysisID, &e.Question, &e.Answer, &created); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, e)
	}
	return out, rows.Err()
}
