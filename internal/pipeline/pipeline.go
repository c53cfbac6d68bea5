// Package pipeline runs the ETL stages in their fixed order: API extraction,
// web scraping, auxiliary extractions, normalization, relational load and
// document load.
//
// Only the scraper may fail without consequence; it cannot return an error
// at all. Every other stage error aborts the run and is returned wrapped in
// ErrStage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/nbaetl/internal/adapters/source/auxiliary"
	"github.com/okian/nbaetl/internal/adapters/source/paged"
	"github.com/okian/nbaetl/internal/adapters/source/scraper"
	"github.com/okian/nbaetl/internal/domain/load/document"
	"github.com/okian/nbaetl/internal/domain/load/relational"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/internal/domain/normalize"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

var tracer = otel.Tracer("nbaetl.pipeline")

const (
	defaultMaxPlayers = 200
	defaultMaxGames   = 200
	defaultSeason     = 2023
)

// Fetcher collects paginated API records.
type Fetcher interface {
	Fetch(ctx context.Context, res paged.Resource, limit int) ([]model.RawRecord, error)
}

// Scraper extracts optional web tables.
type Scraper interface {
	Scrape(ctx context.Context) scraper.Result
}

// Auxiliary produces the side outputs.
type Auxiliary interface {
	Run(ctx context.Context, teams []model.Team) (auxiliary.Result, error)
}

// Normalizer reshapes the persisted raw files.
type Normalizer interface {
	Run(ctx context.Context) (normalize.Result, error)
}

// RelationalLoader writes typed records to the relational store.
type RelationalLoader interface {
	Load(ctx context.Context, players []model.SourcePlayer, games []model.SourceGame) (relational.Result, error)
}

// DocumentLoader writes normalized records to the document store.
type DocumentLoader interface {
	Load(ctx context.Context, players []model.Player, games []model.Game) (document.Result, error)
}

// Stages are the collaborators of a run. All are required.
type Stages struct {
	Fetcher    Fetcher
	Scraper    Scraper
	Auxiliary  Auxiliary
	Normalizer Normalizer
	Relational RelationalLoader
	Document   DocumentLoader
}

// Pipeline executes runs.
type Pipeline struct {
	stages     Stages
	maxPlayers int
	maxGames   int
	season     int
	logger     logger.Logger
}

// New creates a Pipeline over stages.
func New(stages Stages, opts ...Option) *Pipeline {
	p := &Pipeline{
		stages:     stages,
		maxPlayers: defaultMaxPlayers,
		maxGames:   defaultMaxGames,
		season:     defaultSeason,
		logger:     logger.Get().Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run carries the data handed from stage to stage.
type run struct {
	rawPlayers []model.RawRecord
	rawGames   []model.RawRecord
	players    []model.SourcePlayer
	games      []model.SourceGame
	normalized normalize.Result
}

// Run executes every stage once. The report covers the stages that ran,
// including the one that failed.
func (p *Pipeline) Run(ctx context.Context, runID string) (rep Report, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("run_id", runID)))
	rep = Report{RunID: runID, Started: time.Now()}
	defer func() {
		rep.Duration = time.Since(rep.Started)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := p.logger.With(logger.String("run_id", runID))
	var r run

	steps := []struct {
		name string
		fn   func(context.Context, *run) (string, string, error)
	}{
		{StageExtract, p.extract},
		{StageScrape, p.scrape},
		{StageAuxiliary, p.auxiliary},
		{StageTransform, p.transform},
		{StageRelational, p.relational},
		{StageDocument, p.document},
	}
	for _, s := range steps {
		sr, serr := p.stage(ctx, log, s.name, &r, s.fn)
		rep.Stages = append(rep.Stages, sr)
		if serr != nil {
			log.Error(ctx, "pipeline aborted", logger.String("stage", s.name), logger.Error(serr))
			return rep, fmt.Errorf("%w: %s: %w", ErrStage, s.name, serr)
		}
	}

	log.Info(ctx, "full ETL pipeline finished", logger.Any("report", rep))
	return rep, nil
}

func (p *Pipeline) stage(ctx context.Context, log logger.Logger, name string, r *run,
	fn func(context.Context, *run) (string, string, error),
) (StageReport, error) {
	ctx, span := tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	start := time.Now()
	outcome, detail, err := fn(ctx, r)
	sr := StageReport{Stage: name, Outcome: outcome, Duration: time.Since(start), Detail: detail}
	if err != nil {
		sr.Outcome = OutcomeFailed
		sr.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.RecordStageDuration(name, sr.Outcome, float64(sr.Duration.Milliseconds()))
	log.Info(ctx, "stage finished",
		logger.String("stage", name),
		logger.String("outcome", sr.Outcome),
		logger.Duration("took", sr.Duration),
		logger.String("detail", detail))
	return sr, err
}

func (p *Pipeline) extract(ctx context.Context, r *run) (string, string, error) {
	var err error
	if r.rawPlayers, err = p.stages.Fetcher.Fetch(ctx, paged.Players(), p.maxPlayers); err != nil {
		return "", "", fmt.Errorf("players: %w", err)
	}
	if r.rawGames, err = p.stages.Fetcher.Fetch(ctx, paged.Games(p.season), p.maxGames); err != nil {
		return "", "", fmt.Errorf("games: %w", err)
	}
	return OutcomeOK, fmt.Sprintf("%d players, %d games", len(r.rawPlayers), len(r.rawGames)), nil
}

func (p *Pipeline) scrape(ctx context.Context, _ *run) (string, string, error) {
	res := p.stages.Scraper.Scrape(ctx)
	if !res.Fetched {
		return OutcomeDegraded, "page unavailable", nil
	}
	return OutcomeOK, fmt.Sprintf("%d tables, %d files", len(res.Tables), len(res.Files)), nil
}

func (p *Pipeline) auxiliary(ctx context.Context, r *run) (string, string, error) {
	var err error
	if r.players, err = model.DecodePlayers(r.rawPlayers); err != nil {
		return "", "", fmt.Errorf("decode players: %w", err)
	}
	if r.games, err = model.DecodeGames(r.rawGames); err != nil {
		return "", "", fmt.Errorf("decode games: %w", err)
	}
	res, err := p.stages.Auxiliary.Run(ctx, relational.DeriveTeams(r.players, r.games))
	if err != nil {
		return "", "", err
	}
	return OutcomeOK, fmt.Sprintf("%d teams mirrored, %d stat rows, %d events",
		res.MirroredTeams, res.StatRows, res.Events), nil
}

// transform falls back to normalizing the in-memory records when the raw
// files were not there to read.
func (p *Pipeline) transform(ctx context.Context, r *run) (string, string, error) {
	res, err := p.stages.Normalizer.Run(ctx)
	if err != nil {
		return "", "", err
	}
	outcome := OutcomeOK
	if res.Skipped {
		res = normalize.Result{
			Players: normalize.Players(r.rawPlayers),
			Games:   normalize.Games(r.rawGames),
			Skipped: true,
		}
		outcome = OutcomeDegraded
	}
	r.normalized = res
	return outcome, fmt.Sprintf("%d players, %d games, %d duplicates dropped",
		len(res.Players.Records), len(res.Games.Records),
		res.Players.Duplicates+res.Games.Duplicates), nil
}

func (p *Pipeline) relational(ctx context.Context, r *run) (string, string, error) {
	res, err := p.stages.Relational.Load(ctx, r.players, r.games)
	if err != nil {
		return "", "", err
	}
	return OutcomeOK, fmt.Sprintf("inserted %d teams, %d players, %d seasons, %d games",
		res.Teams, res.Players, res.Seasons, res.Games), nil
}

func (p *Pipeline) document(ctx context.Context, r *run) (string, string, error) {
	res, err := p.stages.Document.Load(ctx, r.normalized.Players.Records, r.normalized.Games.Records)
	if err != nil {
		return "", "", err
	}
	outcome := OutcomeOK
	if res.Players.IndexError != nil || res.Games.IndexError != nil ||
		res.Players.Upsert.WriteErrors > 0 || res.Games.Upsert.WriteErrors > 0 {
		outcome = OutcomeDegraded
	}
	return outcome, fmt.Sprintf("players +%d/~%d, games +%d/~%d, %d duplicates removed",
		res.Players.Upsert.Upserted, res.Players.Upsert.Modified,
		res.Games.Upsert.Upserted, res.Games.Upsert.Modified,
		res.Players.Removed+res.Games.Removed), nil
}
