// Package audit keeps an optional SQLite log of engine runs. Each row holds
// the run's strategy and notes, BLAKE3 digests of the input and output, and
// xz-compressed snapshots of both documents.
package audit

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	perrors "github.com/FocuswithJustin/promptfix/core/errors"
	"github.com/FocuswithJustin/promptfix/core/engine"
	"github.com/FocuswithJustin/promptfix/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL UNIQUE,
	created_at    TEXT NOT NULL,
	strategy      TEXT NOT NULL,
	modified      INTEGER NOT NULL,
	notes         TEXT NOT NULL,
	input_digest  TEXT NOT NULL,
	output_digest TEXT NOT NULL,
	input_xz      BLOB NOT NULL,
	output_xz     BLOB NOT NULL,
	diff          TEXT NOT NULL
)`

// Record is one audited run.
type Record struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Strategy     string    `json:"strategy"`
	Modified     bool      `json:"modified"`
	Notes        []string  `json:"notes"`
	InputDigest  string    `json:"input_digest"`
	OutputDigest string    `json:"output_digest"`
	Input        string    `json:"input,omitempty"`
	Output       string    `json:"output,omitempty"`
	Diff         string    `json:"diff"`
}

// FromResult builds the record for one engine run over input.
func FromResult(runID, input string, res engine.Result) Record {
	notes := make([]string, 0, len(res.Notes))
	for _, n := range res.Notes {
		if n.Field != "" {
			notes = append(notes, fmt.Sprintf("%s [%s]: %s", n.Kind, n.Field, n.Message))
			continue
		}
		notes = append(notes, fmt.Sprintf("%s: %s", n.Kind, n.Message))
	}
	return Record{
		RunID:        runID,
		Timestamp:    time.Now().UTC(),
		Strategy:     string(res.Strategy),
		Modified:     res.Modified,
		Notes:        notes,
		InputDigest:  Digest(input),
		OutputDigest: Digest(res.Text),
		Input:        input,
		Output:       res.Text,
		Diff:         res.Report.Render(),
	}
}

// Digest returns the hex BLAKE3-256 digest of text.
func Digest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Store is an open audit database.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the audit database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, perrors.NewIO("mkdir", dir, err)
		}
	}
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, perrors.NewIO("open", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, perrors.NewIO("create schema", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores rec. Digests are computed when missing.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.InputDigest == "" {
		rec.InputDigest = Digest(rec.Input)
	}
	if rec.OutputDigest == "" {
		rec.OutputDigest = Digest(rec.Output)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	notes, err := json.Marshal(rec.Notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	in, err := compress(rec.Input)
	if err != nil {
		return fmt.Errorf("compress input: %w", err)
	}
	out, err := compress(rec.Output)
	if err != nil {
		return fmt.Errorf("compress output: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, created_at, strategy, modified, notes, input_digest, output_digest, input_xz, output_xz, diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Timestamp.Format(time.RFC3339Nano), rec.Strategy, rec.Modified, string(notes),
		rec.InputDigest, rec.OutputDigest, in, out, rec.Diff)
	if err != nil {
		return perrors.NewIO("insert", s.path, err)
	}
	return nil
}

// Get returns the run with runID including both document snapshots. The
// snapshots are checked against their stored digests.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT
		run_id, created_at, strategy, modified, notes, input_digest, output_digest, input_xz, output_xz, diff
		FROM runs WHERE run_id = ?`, runID)

	var rec Record
	var created, notes string
	var in, out []byte
	err := row.Scan(&rec.RunID, &created, &rec.Strategy, &rec.Modified, &notes,
		&rec.InputDigest, &rec.OutputDigest, &in, &out, &rec.Diff)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perrors.Wrapf(perrors.ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, perrors.NewIO("query", s.path, err)
	}
	if err := fill(&rec, created, notes); err != nil {
		return nil, err
	}

	if rec.Input, err = decompress(in); err != nil {
		return nil, fmt.Errorf("decompress input: %w", err)
	}
	if rec.Output, err = decompress(out); err != nil {
		return nil, fmt.Errorf("decompress output: %w", err)
	}
	if Digest(rec.Input) != rec.InputDigest || Digest(rec.Output) != rec.OutputDigest {
		return nil, perrors.Wrapf(perrors.ErrInvalidInput, "run %s: snapshot digest mismatch", runID)
	}
	return &rec, nil
}

// List returns up to limit runs, newest first, without document snapshots.
// A limit of zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT
		run_id, created_at, strategy, modified, notes, input_digest, output_digest, diff
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, perrors.NewIO("query", s.path, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var created, notes string
		if err := rows.Scan(&rec.RunID, &created, &rec.Strategy, &rec.Modified, &notes,
			&rec.InputDigest, &rec.OutputDigest, &rec.Diff); err != nil {
			return nil, perrors.NewIO("scan", s.path, err)
		}
		if err := fill(&rec, created, notes); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewIO("query", s.path, err)
	}
	return records, nil
}

func fill(rec *Record, created, notes string) error {
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return fmt.Errorf("run %s: bad timestamp: %w", rec.RunID, err)
	}
	rec.Timestamp = ts
	if err := json.Unmarshal([]byte(notes), &rec.Notes); err != nil {
		return fmt.Errorf("run %s: bad notes: %w", rec.RunID, err)
	}
	return nil
}

func compress(text string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) (string, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
