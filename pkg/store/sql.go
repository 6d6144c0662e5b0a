package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavor used by the SQL store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"

	timeFormat = "2006-01-02T15:04:05Z"

	selectObjectSQL = `SELECT data, generation FROM object WHERE name = ?`

	countObjectSQL = `SELECT COUNT(*) FROM object WHERE name = ?`

	upsertObjectSQL = `INSERT INTO object (name, data, generation, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (name) DO UPDATE SET
			data = excluded.data,
			generation = object.generation + 1,
			updated_at = excluded.updated_at
		RETURNING generation
	`

	insertObjectSQL = `INSERT INTO object (name, data, generation, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (name) DO NOTHING
		RETURNING generation
	`

	updateObjectSQL = `UPDATE object
		SET data = ?, generation = generation + 1, updated_at = ?
		WHERE name = ? AND generation = ?
		RETURNING generation
	`
)

var (
	//go:embed sql/*
	ddl embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// SQL is a Store backed by a single table in SQLite or PostgreSQL.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL opens the database and creates the object table if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, errors.New("dsn not specified")
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	s, err := NewSQL(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an open database and creates the object table if needed.
func NewSQL(ctx context.Context, db *sql.DB, dialect Dialect) (*SQL, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	b, err := ddl.ReadFile(fmt.Sprintf("sql/%s.sql", dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to read the schema creation file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return nil, fmt.Errorf("failed to create object schema: %w", err)
	}
	slog.Debug("object schema ready", "dialect", dialect)

	return &SQL{db: db, dialect: dialect}, nil
}

func (s *SQL) Exists(ctx context.Context, key string) (bool, error) {
	if s.db == nil {
		return false, errDBNotInitialized
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, s.rebind(countObjectSQL), key).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count object %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *SQL) Read(ctx context.Context, key string) ([]byte, Generation, error) {
	if s.db == nil {
		return nil, 0, errDBNotInitialized
	}

	var data []byte
	var gen int64
	err := s.db.QueryRowContext(ctx, s.rebind(selectObjectSQL), key).Scan(&data, &gen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return data, Generation(gen), nil
}

func (s *SQL) Write(ctx context.Context, key string, data []byte, match Generation) (Generation, error) {
	if s.db == nil {
		return 0, errDBNotInitialized
	}

	if data == nil {
		data = []byte{}
	}

	now := time.Now().UTC().Format(timeFormat)

	var row *sql.Row
	switch {
	case match == Unconditional:
		row = s.db.QueryRowContext(ctx, s.rebind(upsertObjectSQL), key, data, now)
	case match == Absent:
		row = s.db.QueryRowContext(ctx, s.rebind(insertObjectSQL), key, data, now)
	default:
		row = s.db.QueryRowContext(ctx, s.rebind(updateObjectSQL), data, now, key, int64(match))
	}

	var gen int64
	if err := row.Scan(&gen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("write %s at generation %d: %w", key, match, ErrPreconditionFailed)
		}
		return 0, fmt.Errorf("failed to write object %s: %w", key, err)
	}

	return Generation(gen), nil
}

func (s *SQL) UploadFile(ctx context.Context, key, localPath string) error {
	b, err := readFile(localPath)
	if err != nil {
		return err
	}
	_, err = s.Write(ctx, key, b, Unconditional)
	return err
}

func (s *SQL) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQL) URI(key string) string {
	return fmt.Sprintf("%s://%s", s.dialect, key)
}

// rebind converts ? placeholders to $N for PostgreSQL.
func (s *SQL) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
