package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weirdgate/weirdgate/internal/core"
)

// WindowQuery selects persisted windows.
type WindowQuery struct {
	All    bool
	Name   string
	Prefix string
}

func (q WindowQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Name) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --name, or --prefix")
}

func (q WindowQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		return "WHERE name = ?", []any{name}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	// LIKE would treat the underscores common in weird names as wildcards
	// and ignore ASCII case; compare the leading characters exactly instead.
	return "WHERE substr(name, 1, length(?)) = ?", []any{prefix, prefix}, nil
}

// SaveWindows replaces every persisted window with entries.
func (s *Store) SaveWindows(ctx context.Context, entries []core.WindowEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin window snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sampling_windows`); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sampling_windows (name, context, count, window_start, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name, context) DO UPDATE SET
			count = excluded.count,
			window_start = excluded.window_start,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("prepare window insert: %w", err)
	}
	defer stmt.Close() // nolint:errcheck // best-effort cleanup

	for _, entry := range entries {
		name := entry.Key.Name
		scope := entry.Key.Context.String()
		if name == "" {
			name, scope = entry.Name, entry.Scope
		}
		if _, err := stmt.ExecContext(ctx,
			name,
			scope,
			int64(entry.Window.Count),
			entry.Window.WindowStart.UnixNano(),
			entry.Window.LastSeen.UnixNano(),
		); err != nil {
			return fmt.Errorf("store window %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit window snapshot: %w", err)
	}
	return nil
}

// LoadWindows returns every persisted window with its key rebuilt.
func (s *Store) LoadWindows(ctx context.Context) ([]core.WindowEntry, error) {
	return s.ListWindows(ctx, WindowQuery{All: true})
}

// ListWindows returns persisted windows ordered by name and context.
func (s *Store) ListWindows(ctx context.Context, q WindowQuery) ([]core.WindowEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, context, count, window_start, last_seen
		FROM sampling_windows
		%s
		ORDER BY name, context
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []core.WindowEntry{}
	for rows.Next() {
		var (
			name        string
			scope       string
			count       int64
			windowStart int64
			lastSeen    int64
		)
		if err := rows.Scan(&name, &scope, &count, &windowStart, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan windows: %w", err)
		}

		c, err := core.ParseContext(scope)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", name, err)
		}

		entries = append(entries, core.NewWindowEntry(core.NewSamplingKey(name, c), core.SamplingWindow{
			Count:       uint64(count),
			WindowStart: time.Unix(0, windowStart).UTC(),
			LastSeen:    time.Unix(0, lastSeen).UTC(),
		}))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	return entries, nil
}

func (s *Store) CountWindows(ctx context.Context, q WindowQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM sampling_windows
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count windows: %w", err)
	}
	return count, nil
}

func (s *Store) ResetWindows(ctx context.Context, q WindowQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM sampling_windows
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset windows: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset windows: %w", err)
	}
	return affected, nil
}
