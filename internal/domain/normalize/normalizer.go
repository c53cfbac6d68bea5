package normalize

import (
	"context"
	"fmt"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

// Files is the file access the Normalizer needs.
type Files interface {
	Exists(path string) bool
	ReadRecords(path string) ([]model.RawRecord, error)
	WriteCSV(path string, header []string, rows [][]any) error
}

// Result is what one Normalizer run produced.
type Result struct {
	Players Batch[model.Player]
	Games   Batch[model.Game]
	// Skipped is set when the raw inputs were absent and nothing ran.
	Skipped bool
}

// Normalizer turns the raw API files of a run into normalized CSV tables.
type Normalizer struct {
	layout model.Layout
	files  Files
	logger logger.Logger
}

// New creates a Normalizer reading and writing under layout.
func New(layout model.Layout, files Files, opts ...Option) *Normalizer {
	n := &Normalizer{
		layout: layout,
		files:  files,
		logger: logger.Get().Named("normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run normalizes api_players.json and api_games.json. Missing inputs make
// the run a reported no-op, not a failure.
func (n *Normalizer) Run(ctx context.Context) (Result, error) {
	playersIn := n.layout.Path(model.RawPlayersFile)
	gamesIn := n.layout.Path(model.RawGamesFile)

	if !n.files.Exists(playersIn) || !n.files.Exists(gamesIn) {
		n.logger.Warn(ctx, "transform skipped: raw API files not found",
			logger.Error(ErrInputMissing),
			logger.String("players", playersIn),
			logger.String("games", gamesIn))
		return Result{Skipped: true}, nil
	}

	rawPlayers, err := n.files.ReadRecords(playersIn)
	if err != nil {
		return Result{}, fmt.Errorf("read players: %w", err)
	}
	rawGames, err := n.files.ReadRecords(gamesIn)
	if err != nil {
		return Result{}, fmt.Errorf("read games: %w", err)
	}

	res := Result{Players: Players(rawPlayers), Games: Games(rawGames)}
	n.report(ctx, "players", res.Players.Duplicates, res.Players.MissingID, len(res.Players.Records))
	n.report(ctx, "games", res.Games.Duplicates, res.Games.MissingID, len(res.Games.Records))

	playerRows := make([][]any, len(res.Players.Records))
	for i, p := range res.Players.Records {
		playerRows[i] = p.Row()
	}
	if err := n.files.WriteCSV(n.layout.Path(model.NormPlayersFile), model.PlayerColumns, playerRows); err != nil {
		return Result{}, fmt.Errorf("write players: %w", err)
	}

	gameRows := make([][]any, len(res.Games.Records))
	for i, g := range res.Games.Records {
		gameRows[i] = g.Row()
	}
	if err := n.files.WriteCSV(n.layout.Path(model.NormGamesFile), model.GameColumns, gameRows); err != nil {
		return Result{}, fmt.Errorf("write games: %w", err)
	}

	n.logger.Info(ctx, "transform complete",
		logger.Int("players", len(res.Players.Records)),
		logger.Int("games", len(res.Games.Records)))
	return res, nil
}

func (n *Normalizer) report(ctx context.Context, entity string, dups, missing, emitted int) {
	metrics.RecordNormalized(entity, emitted, dups)
	if dups > 0 {
		n.logger.Debug(ctx, "dropped duplicate ids", logger.String("entity", entity), logger.Int("count", dups))
	}
	if missing > 0 {
		n.logger.Warn(ctx, "dropped records without id", logger.String("entity", entity), logger.Int("count", missing))
	}
}
