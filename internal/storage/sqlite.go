package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"squadbot/internal/model"
	"squadbot/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := migrations.Up(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// LoadMotd returns the MOTD text for server.
func (s *SQLite) LoadMotd(ctx context.Context, server string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM motd WHERE server = ?`, server).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query motd: %w", err)
	}
	return text, nil
}

// SaveMotd replaces the MOTD text for server.
func (s *SQLite) SaveMotd(ctx context.Context, server, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO motd (server, text) VALUES (?, ?)
		 ON CONFLICT(server) DO UPDATE SET text = excluded.text`,
		server, text,
	)
	if err != nil {
		return fmt.Errorf("save motd: %w", err)
	}
	return nil
}

// LoadOptOuts returns the opt-out list for server in insertion order.
// A server whose list was saved empty returns an empty, non-nil slice.
func (s *SQLite) LoadOptOuts(ctx context.Context, server string) ([]string, error) {
	var known int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM optout_lists WHERE server = ?`, server,
	).Scan(&known); err != nil {
		return nil, fmt.Errorf("query opt-out list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM motd_optouts WHERE server = ? ORDER BY position`, server,
	)
	if err != nil {
		return nil, fmt.Errorf("query opt-outs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan opt-out: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(users) == 0 && known == 0 {
		return nil, ErrNotFound
	}
	return users, nil
}

// SaveOptOuts replaces the opt-out list for server.
func (s *SQLite) SaveOptOuts(ctx context.Context, server string, users []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM motd_optouts WHERE server = ?`, server); err != nil {
		return fmt.Errorf("delete opt-outs: %w", err)
	}
	for i, u := range users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO motd_optouts (server, username, position) VALUES (?, ?, ?)`,
			server, u, i,
		); err != nil {
			return fmt.Errorf("insert opt-out: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO optout_lists (server) VALUES (?) ON CONFLICT(server) DO NOTHING`, server,
	); err != nil {
		return fmt.Errorf("insert opt-out list: %w", err)
	}
	return tx.Commit()
}

// LoadCursor returns the activity cursor.
func (s *SQLite) LoadCursor(ctx context.Context) (model.Cursor, error) {
	var issue, pr, commit string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_issue, last_pr, last_commit FROM cursor WHERE id = 1`,
	).Scan(&issue, &pr, &commit)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Cursor{}, ErrNotFound
	}
	if err != nil {
		return model.Cursor{}, fmt.Errorf("query cursor: %w", err)
	}

	var c model.Cursor
	if c.LastIssue, err = model.ParseCursorTime(issue); err != nil {
		return model.Cursor{}, err
	}
	if c.LastPR, err = model.ParseCursorTime(pr); err != nil {
		return model.Cursor{}, err
	}
	if c.LastCommit, err = model.ParseCursorTime(commit); err != nil {
		return model.Cursor{}, err
	}
	return c, nil
}

// SaveCursor replaces the activity cursor.
func (s *SQLite) SaveCursor(ctx context.Context, c model.Cursor) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursor (id, last_issue, last_pr, last_commit) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   last_issue = excluded.last_issue,
		   last_pr = excluded.last_pr,
		   last_commit = excluded.last_commit`,
		model.FormatCursorTime(c.LastIssue), model.FormatCursorTime(c.LastPR), model.FormatCursorTime(c.LastCommit),
	)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
