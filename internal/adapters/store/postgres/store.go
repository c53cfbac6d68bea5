// Package postgres is the relational store: a pgx pool, a transaction runner
// for the loader, batched conflict-free inserts and the catalog reads.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/nbaetl/internal/domain/load/relational"
	"github.com/okian/nbaetl/internal/domain/model"
)

// Connect opens a pool and pings it.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %w", ErrConnect, err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnect, err)
	}
	return pool, nil
}

// Store serves the loader and the catalog from one pool. The caller owns the
// pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn in one transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, w relational.Writer) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &writer{tx: tx})
	})
}

// Ping checks the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type writer struct {
	tx pgx.Tx
}

const (
	insertTeam   = `INSERT INTO teams (id, abbr, name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	insertPlayer = `INSERT INTO players (id, first, last, pos, team_id) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`
	insertSeason = `INSERT INTO seasons (year) VALUES ($1) ON CONFLICT DO NOTHING`
	insertGame   = `INSERT INTO games (id, season, date, home_team_id, visitor_team_id, home_score, visitor_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT DO NOTHING`
)

func (w *writer) InsertTeams(ctx context.Context, rows []model.Team) (int64, error) {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertTeam, r.ID, r.Abbr, r.Name)
	}
	return w.send(ctx, "teams", b)
}

func (w *writer) InsertPlayers(ctx context.Context, rows []relational.PlayerRow) (int64, error) {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertPlayer, r.ID, r.First, r.Last, r.Pos, r.TeamID)
	}
	return w.send(ctx, "players", b)
}

func (w *writer) InsertSeasons(ctx context.Context, rows []model.Season) (int64, error) {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertSeason, r.Year)
	}
	return w.send(ctx, "seasons", b)
}

func (w *writer) InsertGames(ctx context.Context, rows []relational.GameRow) (int64, error) {
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(insertGame, r.ID, r.Season, r.Date, r.HomeTeamID, r.VisitorTeamID, r.HomeScore, r.VisitorScore)
	}
	return w.send(ctx, "games", b)
}

// send executes the batch and sums the rows actually inserted.
func (w *writer) send(ctx context.Context, table string, b *pgx.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	br := w.tx.SendBatch(ctx, b)
	var total int64
	for i := 0; i < b.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, fmt.Errorf("insert %s row %d: %w", table, i, err)
		}
		total += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return total, fmt.Errorf("insert %s: %w", table, err)
	}
	return total, nil
}
