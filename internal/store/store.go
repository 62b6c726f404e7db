// Package store persists synthesized audio in the outputs directory and
// indexes it in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned for an unknown artifact name.
var ErrNotFound = errors.New("store: artifact not found")

// Artifact is one stored WAV file and the request that produced it.
type Artifact struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	AccentID   int       `json:"accent_id"`
	StyleID    int       `json:"style_id"`
	Frames     int       `json:"frames"`
	StopCause  string    `json:"stop_cause"`
	SampleRate int       `json:"sample_rate"`
	Duration   float64   `json:"duration"`
	Bytes      int64     `json:"bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store writes artifacts under Dir and records them in an SQLite index.
type Store struct {
	db  *sql.DB
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// Open creates the outputs directory and the index database if needed.
func Open(dbPath, outputsDir string) (*Store, error) {
	if outputsDir == "" {
		return nil, errors.New("store: outputs directory is required")
	}

	if err := os.MkdirAll(outputsDir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create outputs dir: %w", err)
	}

	if dbPath == "" {
		dbPath = filepath.Join(outputsDir, "artifacts.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create database dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, dir: outputsDir, now: time.Now}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		language TEXT NOT NULL,
		accent_id INTEGER NOT NULL,
		style_id INTEGER NOT NULL,
		frames INTEGER NOT NULL,
		stop_cause TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		duration REAL NOT NULL,
		bytes INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_artifacts_language ON artifacts(language);
	`

	_, err := s.db.Exec(schema)

	return err
}

// Dir is the outputs directory.
func (s *Store) Dir() string { return s.dir }

// Save writes wav to a new file named "<kind>_<id>.wav" and indexes it.
// ID, Name, Bytes and CreatedAt are filled in on the returned copy.
func (s *Store) Save(ctx context.Context, a Artifact, wav []byte) (Artifact, error) {
	if len(wav) == 0 {
		return Artifact{}, errors.New("store: refusing to save empty audio")
	}

	if a.Kind == "" {
		a.Kind = "tts"
	}

	a.ID = uuid.NewString()
	a.Name = fmt.Sprintf("%s_%s.wav", a.Kind, a.ID)
	a.Bytes = int64(len(wav))
	a.CreatedAt = s.now().UTC()

	path := filepath.Join(s.dir, a.Name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, wav, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("store: write audio: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Artifact{}, fmt.Errorf("store: write audio: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, name, kind, text, language, accent_id, style_id,
			frames, stop_cause, sample_rate, duration, bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Kind, a.Text, a.Language, a.AccentID, a.StyleID,
		a.Frames, a.StopCause, a.SampleRate, a.Duration, a.Bytes, a.CreatedAt,
	)
	if err != nil {
		_ = os.Remove(path)
		return Artifact{}, fmt.Errorf("store: index artifact: %w", err)
	}

	return a, nil
}

// Get looks an artifact up by file name.
func (s *Store) Get(ctx context.Context, name string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM artifacts WHERE name = ?`, name)

	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return a, err
}

// Path returns the on-disk location of an indexed artifact. Names that are
// not plain file names are rejected.
func (s *Store) Path(ctx context.Context, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if _, err := s.Get(ctx, name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return path, nil
}

// List returns the most recent artifacts first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Artifact, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM artifacts ORDER BY created_at DESC, name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Artifact

	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// Prune deletes artifacts created before now minus olderThan. Each index
// row is deleted only after its file is gone, so a failed prune never leaves
// rows pointing at missing files.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.namesBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var pruned int64

	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("store: prune %s: %w", name, err)
		}

		res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE name = ?`, name)
		if err != nil {
			return pruned, fmt.Errorf("store: prune %s: %w", name, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return pruned, err
		}

		pruned += n
	}

	return pruned, nil
}

func (s *Store) namesBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM artifacts WHERE created_at < ? ORDER BY created_at, name`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: prune: %w", err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: prune: %w", err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: prune: %w", err)
	}

	return names, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const columns = `id, name, kind, text, language, accent_id, style_id, frames,
	stop_cause, sample_rate, duration, bytes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(r scanner) (Artifact, error) {
	var a Artifact

	err := r.Scan(&a.ID, &a.Name, &a.Kind, &a.Text, &a.Language, &a.AccentID, &a.StyleID,
		&a.Frames, &a.StopCause, &a.SampleRate, &a.Duration, &a.Bytes, &a.CreatedAt)

	return a, err
}
