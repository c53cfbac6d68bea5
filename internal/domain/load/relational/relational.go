// Package relational loads players, games and the teams they reference into
// the relational store with insert-if-absent semantics.
package relational

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

var tracer = otel.Tracer("nbaetl.load.relational")

// PlayerRow is a row of the players table. A nil TeamID is stored as NULL.
type PlayerRow struct {
	ID     int64
	First  string
	Last   string
	Pos    string
	TeamID *int64
}

// GameRow is a row of the games table.
type GameRow struct {
	ID            int64
	Season        *int64
	Date          string
	HomeTeamID    *int64
	VisitorTeamID *int64
	HomeScore     int64
	VisitorScore  int64
}

// Writer performs conflict-free inserts and reports how many rows were new.
type Writer interface {
	InsertTeams(ctx context.Context, rows []model.Team) (int64, error)
	InsertPlayers(ctx context.Context, rows []PlayerRow) (int64, error)
	InsertSeasons(ctx context.Context, rows []model.Season) (int64, error)
	InsertGames(ctx context.Context, rows []GameRow) (int64, error)
}

// Store runs fn inside one transaction; fn's error rolls everything back.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, w Writer) error) error
}

// Result counts the rows each insert added. Conflicting ids are not counted.
type Result struct {
	Teams   int64
	Players int64
	Seasons int64
	Games   int64
	// Skipped counts source records without an id.
	Skipped int
}

// Loader is the relational sink.
type Loader struct {
	store  Store
	season int64
	logger logger.Logger
}

// New creates a Loader that marks every run with season.
func New(store Store, season int64, opts ...Option) *Loader {
	l := &Loader{
		store:  store,
		season: season,
		logger: logger.Get().Named("relational"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load derives teams and inserts teams, players, the season marker and games
// in that order within one transaction.
func (l *Loader) Load(ctx context.Context, players []model.SourcePlayer, games []model.SourceGame) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "relational.Load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	teams := DeriveTeams(players, games)
	playerRows, skippedPlayers := PlayerRows(players)
	gameRows, skippedGames := GameRows(games)
	res.Skipped = skippedPlayers + skippedGames
	span.SetAttributes(
		attribute.Int("teams", len(teams)),
		attribute.Int("players", len(playerRows)),
		attribute.Int("games", len(gameRows)),
	)

	if res.Skipped > 0 {
		l.logger.Warn(ctx, "skipping source records without id", logger.Int("count", res.Skipped))
	}

	err = l.store.WithTx(ctx, func(ctx context.Context, w Writer) error {
		var ierr error
		if res.Teams, ierr = w.InsertTeams(ctx, teams); ierr != nil {
			return fmt.Errorf("teams: %w", ierr)
		}
		if res.Players, ierr = w.InsertPlayers(ctx, playerRows); ierr != nil {
			return fmt.Errorf("players: %w", ierr)
		}
		if res.Seasons, ierr = w.InsertSeasons(ctx, []model.Season{{Year: l.season}}); ierr != nil {
			return fmt.Errorf("seasons: %w", ierr)
		}
		if res.Games, ierr = w.InsertGames(ctx, gameRows); ierr != nil {
			return fmt.Errorf("games: %w", ierr)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	metrics.RecordRowsInserted("teams", res.Teams)
	metrics.RecordRowsInserted("players", res.Players)
	metrics.RecordRowsInserted("seasons", res.Seasons)
	metrics.RecordRowsInserted("games", res.Games)

	l.logger.Info(ctx, "relational load complete",
		logger.Int("players", len(playerRows)),
		logger.Int("games", len(gameRows)),
		logger.Int64("teams_inserted", res.Teams),
		logger.Int64("players_inserted", res.Players),
		logger.Int64("games_inserted", res.Games))
	return res, nil
}

// DeriveTeams collects every team referenced by players (team) and games
// (home_team, visitor_team). The first definition seen for an id wins; teams
// without an id are not references.
func DeriveTeams(players []model.SourcePlayer, games []model.SourceGame) []model.Team {
	seen := make(map[int64]struct{})
	var out []model.Team
	add := func(t *model.SourceTeam) {
		if t == nil || t.ID == nil {
			return
		}
		if _, ok := seen[*t.ID]; ok {
			return
		}
		seen[*t.ID] = struct{}{}
		out = append(out, model.Team{ID: *t.ID, Abbr: t.Abbreviation, Name: t.FullName})
	}
	for _, p := range players {
		add(p.Team)
	}
	for _, g := range games {
		add(g.HomeTeam)
		add(g.VisitorTeam)
	}
	return out
}

// PlayerRows maps source players to rows, skipping those without an id.
func PlayerRows(players []model.SourcePlayer) ([]PlayerRow, int) {
	rows := make([]PlayerRow, 0, len(players))
	skipped := 0
	for _, p := range players {
		if p.ID == nil {
			skipped++
			continue
		}
		rows = append(rows, PlayerRow{
			ID:     *p.ID,
			First:  p.FirstName,
			Last:   p.LastName,
			Pos:    p.Position,
			TeamID: teamRef(p.Team),
		})
	}
	return rows, skipped
}

// GameRows maps source games to rows. Missing scores become 0.
func GameRows(games []model.SourceGame) ([]GameRow, int) {
	rows := make([]GameRow, 0, len(games))
	skipped := 0
	for _, g := range games {
		if g.ID == nil {
			skipped++
			continue
		}
		rows = append(rows, GameRow{
			ID:            *g.ID,
			Season:        g.Season,
			Date:          g.Date,
			HomeTeamID:    teamRef(g.HomeTeam),
			VisitorTeamID: teamRef(g.VisitorTeam),
			HomeScore:     orZero(g.HomeTeamScore),
			VisitorScore:  orZero(g.VisitorTeamScore),
		})
	}
	return rows, skipped
}

func teamRef(t *model.SourceTeam) *int64 {
	if t == nil || t.ID == nil {
		return nil
	}
	id := *t.ID
	return &id
}

func orZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
