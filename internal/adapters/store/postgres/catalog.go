package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/okian/nbaetl/internal/domain/catalog"
)

// where accumulates filter clauses with positional arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Players lists players ordered by id.
func (s *Store) Players(ctx context.Context, f catalog.PlayerFilter) (catalog.Page[catalog.Player], error) {
	p := f.Paging.Normalize(catalog.DefaultPlayersSize)
	var w where
	if f.TeamID != nil {
		w.add("team_id = ?", *f.TeamID)
	}
	if q := strings.TrimSpace(f.Q); q != "" {
		like := "%" + q + "%"
		w.add("(first ILIKE ? OR last ILIKE ?)", like, like)
	}
	return list[catalog.Player](ctx, s, "players", "id, COALESCE(first, ''), COALESCE(last, ''), COALESCE(pos, ''), team_id", &w, p)
}

// Teams lists teams ordered by id.
func (s *Store) Teams(ctx context.Context, p catalog.Paging) (catalog.Page[catalog.Team], error) {
	return list[catalog.Team](ctx, s, "teams", "id, abbr, name", &where{}, p.Normalize(catalog.DefaultTeamsSize))
}

// Games lists games ordered by id.
func (s *Store) Games(ctx context.Context, f catalog.GameFilter) (catalog.Page[catalog.Game], error) {
	p := f.Paging.Normalize(catalog.DefaultGamesSize)
	var w where
	if f.Season != nil {
		w.add("season = ?", *f.Season)
	}
	if f.TeamID != nil {
		w.add("(home_team_id = ? OR visitor_team_id = ?)", *f.TeamID, *f.TeamID)
	}
	cols := "id, season, COALESCE(date, ''), home_team_id, visitor_team_id, COALESCE(home_score, 0), COALESCE(visitor_score, 0)"
	return list[catalog.Game](ctx, s, "games", cols, &w, p)
}

func list[T any](ctx context.Context, s *Store, table, cols string, w *where, p catalog.Paging) (catalog.Page[T], error) {
	page := catalog.Page[T]{Items: []T{}, Page: p.Page, Size: p.Size}

	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+w.String(), w.args...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("%w: count %s: %w", ErrQuery, table, err)
	}

	args := append(append([]any{}, w.args...), p.Size, p.Offset())
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id LIMIT $%d OFFSET $%d",
		cols, table, w.String(), len(w.args)+1, len(w.args)+2)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return page, fmt.Errorf("%w: list %s: %w", ErrQuery, table, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByPos[T])
	if err != nil {
		return page, fmt.Errorf("%w: scan %s: %w", ErrQuery, table, err)
	}
	page.Items = items
	return page, nil
}
