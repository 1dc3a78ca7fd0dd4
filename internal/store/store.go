package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/answergrader/internal/model"

	_ "modernc.org/sqlite"
)

// Store keeps a history of exam evaluations in SQLite.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		question_count INTEGER NOT NULL,
		grand_total_obtained REAL NOT NULL,
		grand_total_max REAL NOT NULL,
		results TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveEvaluation stores an exam result and returns its generated ID.
func (s *Store) SaveEvaluation(res model.ExamResult) (string, error) {
	results, err := json.Marshal(res.Results)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO evaluations (id, created_at, question_count, grand_total_obtained, grand_total_max, results)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), len(res.Results), res.GrandTotalObtained, res.GrandTotalMax, string(results),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetEvaluation returns a stored evaluation by ID, or nil if it does not exist.
func (s *Store) GetEvaluation(id string) (*model.HistoryEntry, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, question_count, grand_total_obtained, grand_total_max, results
		 FROM evaluations WHERE id = ?`, id,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEvaluations returns the most recent evaluations, newest first.
// A non-positive limit returns all of them.
func (s *Store) ListEvaluations(limit int) ([]model.HistoryEntry, error) {
	query := `SELECT id, created_at, question_count, grand_total_obtained, grand_total_max, results
		FROM evaluations ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// EvaluationCount returns the number of stored evaluations.
func (s *Store) EvaluationCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM evaluations`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (model.HistoryEntry, error) {
	var (
		e       model.HistoryEntry
		results string
	)
	err := sc.Scan(&e.ID, &e.CreatedAt, &e.QuestionCount,
		&e.Result.GrandTotalObtained, &e.Result.GrandTotalMax, &results)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(results), &e.Result.Results); err != nil {
		return e, fmt.Errorf("decode results of %s: %w", e.ID, err)
	}
	return e, nil
}
