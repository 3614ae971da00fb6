package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/health-triage/internal/domain"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rules (
	position  INTEGER PRIMARY KEY,
	id        TEXT NOT NULL UNIQUE,
	priority  INTEGER NOT NULL,
	body      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS diet_tags (
	position  INTEGER PRIMARY KEY,
	id        TEXT NOT NULL UNIQUE,
	body      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS department_map (
	position    INTEGER PRIMARY KEY,
	symptom     TEXT NOT NULL UNIQUE,
	departments TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalogs (
	name  TEXT PRIMARY KEY,
	body  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config_meta (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	revision    INTEGER NOT NULL,
	updated_at  TEXT NOT NULL
);
`

// SQLiteSource reads configuration from a SQLite database. Every write made
// through Import bumps a revision counter that serves as the version.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens a SQLite database and runs migrations.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Revision returns the current revision, 0 before the first import.
func (s *SQLiteSource) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM config_meta WHERE id = 1`).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query revision: %w", err)
	}
	return rev, nil
}

// Version returns the revision formatted as "rev-N".
func (s *SQLiteSource) Version(ctx context.Context) (string, error) {
	rev, err := s.Revision(ctx)
	if err != nil {
		return "", err
	}
	return "rev-" + strconv.FormatInt(rev, 10), nil
}

// LoadRules returns the stored rules in definition order.
func (s *SQLiteSource) LoadRules(ctx context.Context) ([]domain.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var r domain.Rule
		if err := decodeJSON([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadDietTags returns the stored diet tags.
func (s *SQLiteSource) LoadDietTags(ctx context.Context) ([]domain.DietTag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM diet_tags ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query diet tags: %w", err)
	}
	defer rows.Close()

	var out []domain.DietTag
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan diet tag: %w", err)
		}
		var t domain.DietTag
		if err := decodeJSON([]byte(body), &t); err != nil {
			return nil, fmt.Errorf("decode diet tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadDepartmentMap returns the stored department fallback table.
func (s *SQLiteSource) LoadDepartmentMap(ctx context.Context) ([]domain.DepartmentMapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symptom, departments FROM department_map ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query department map: %w", err)
	}
	defer rows.Close()

	var out []domain.DepartmentMapping
	for rows.Next() {
		var (
			m     domain.DepartmentMapping
			depts string
		)
		if err := rows.Scan(&m.Symptom, &depts); err != nil {
			return nil, fmt.Errorf("scan department mapping: %w", err)
		}
		if err := json.Unmarshal([]byte(depts), &m.Departments); err != nil {
			return nil, fmt.Errorf("decode departments for %s: %w", m.Symptom, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadCatalogs returns the stored option catalogs.
func (s *SQLiteSource) LoadCatalogs(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, body FROM catalogs`)
	if err != nil {
		return nil, fmt.Errorf("query catalogs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		out[name] = json.RawMessage(body)
	}
	return out, rows.Err()
}

// Import validates parts and replaces the stored configuration with them in
// a single transaction, returning the new revision.
func (s *SQLiteSource) Import(ctx context.Context, parts Parts) (int64, error) {
	if err := Validate(parts); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"rules", "diet_tags", "department_map", "catalogs"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, r := range parts.Rules {
		body, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules (position, id, priority, body) VALUES (?, ?, ?, ?)`,
			i, r.ID, r.Priority, string(body),
		); err != nil {
			return 0, fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}

	for i, t := range parts.DietTags {
		body, err := json.Marshal(t)
		if err != nil {
			return 0, fmt.Errorf("encode diet tag %s: %w", t.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO diet_tags (position, id, body) VALUES (?, ?, ?)`,
			i, t.ID, string(body),
		); err != nil {
			return 0, fmt.Errorf("insert diet tag %s: %w", t.ID, err)
		}
	}

	for i, m := range parts.DepartmentMap {
		depts, err := json.Marshal(m.Departments)
		if err != nil {
			return 0, fmt.Errorf("encode departments for %s: %w", m.Symptom, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO department_map (position, symptom, departments) VALUES (?, ?, ?)`,
			i, m.Symptom, string(depts),
		); err != nil {
			return 0, fmt.Errorf("insert department mapping %s: %w", m.Symptom, err)
		}
	}

	for name, body := range parts.Catalogs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalogs (name, body) VALUES (?, ?)`,
			name, string(body),
		); err != nil {
			return 0, fmt.Errorf("insert catalog %s: %w", name, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO config_meta (id, revision, updated_at) VALUES (1, 1, ?)
		 ON CONFLICT(id) DO UPDATE SET revision = revision + 1, updated_at = excluded.updated_at`,
		now,
	); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}

	var rev int64
	if err := tx.QueryRowContext(ctx, `SELECT revision FROM config_meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}
