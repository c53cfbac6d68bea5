package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	driver "go.mongodb.org/mongo-driver/mongo"

	"github.com/okian/nbaetl/internal/adapters/files"
	"github.com/okian/nbaetl/internal/adapters/source/auxiliary"
	"github.com/okian/nbaetl/internal/adapters/source/paged"
	"github.com/okian/nbaetl/internal/adapters/source/scraper"
	"github.com/okian/nbaetl/internal/adapters/store/mongo"
	"github.com/okian/nbaetl/internal/adapters/store/postgres"
	"github.com/okian/nbaetl/internal/config"
	"github.com/okian/nbaetl/internal/domain/load/document"
	"github.com/okian/nbaetl/internal/domain/load/relational"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/internal/domain/normalize"
	"github.com/okian/nbaetl/internal/pipeline"
	"github.com/okian/nbaetl/pkg/logger"
)

// stack is every long-lived collaborator of the process. The caller owns
// the store clients and releases them with close.
type stack struct {
	pipeline *pipeline.Pipeline
	store    *postgres.Store
	pool     *pgxpool.Pool
	mongo    *driver.Client
}

func (s *stack) close(ctx context.Context) {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil {
			logger.Get().Warn(ctx, "mongo disconnect failed", logger.Error(err))
		}
	}
}

// stages builds the extraction and transform side of the pipeline. It
// touches neither store.
func stages(cfg *config.Config) pipeline.Stages {
	layout := model.Layout{Dir: cfg.RawDir()}
	fs := files.Local{}

	return pipeline.Stages{
		Fetcher: paged.New(cfg.API.BaseURL,
			paged.WithAPIKey(cfg.API.Key),
			paged.WithTimeout(cfg.API.Timeout),
			paged.WithPerPage(cfg.Fetch.PerPage),
			paged.WithPacing(cfg.Fetch.Pacing),
			paged.WithErrorCooldown(cfg.Fetch.ErrorCooldown),
			paged.WithRateLimitDefault(cfg.Fetch.RateLimitDefault),
			paged.WithMaxAttempts(cfg.Fetch.MaxAttempts),
			paged.WithDeadline(cfg.Fetch.Deadline),
			paged.WithOutput(fs, layout)),
		Scraper: scraper.New(cfg.Scrape.URL,
			scraper.WithAttempts(cfg.Scrape.Attempts),
			scraper.WithBackoffUnit(cfg.Scrape.BackoffUnit),
			scraper.WithTableClass(cfg.Scrape.TableClass),
			scraper.WithTimeout(cfg.Scrape.Timeout),
			scraper.WithOutput(fs, layout)),
		Auxiliary:  auxiliary.New(layout, auxiliary.WithEventCount(cfg.Aux.EventCount)),
		Normalizer: normalize.New(layout, fs),
	}
}

// build connects the stores and assembles the pipeline.
func build(ctx context.Context, cfg *config.Config) (*stack, error) {
	log := logger.Get().Named("wire")
	s := &stack{}

	if cfg.Postgres.Migrate {
		if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
			return nil, err
		}
		log.Info(ctx, "relational schema up to date")
	}

	pool, err := postgres.Connect(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.store = postgres.New(pool)

	client, err := mongo.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.mongo = client
	db := client.Database(cfg.Mongo.Database)

	st := stages(cfg)
	st.Relational = relational.New(s.store, int64(cfg.Fetch.Season))
	st.Document = document.New(
		mongo.New(db, document.PlayersCollection),
		mongo.New(db, document.GamesCollection),
		files.Local{},
		model.Layout{Dir: cfg.RawDir()},
	)

	s.pipeline = pipeline.New(st,
		pipeline.WithLimits(cfg.Fetch.MaxPlayers, cfg.Fetch.MaxGames),
		pipeline.WithSeason(cfg.Fetch.Season))

	log.Info(ctx, "pipeline assembled",
		logger.String("raw_dir", cfg.RawDir()),
		logger.String("api", cfg.API.BaseURL),
		logger.String("mongo_db", cfg.Mongo.Database))
	return s, nil
}

// setupLogging applies the configured format and level to the global logger.
func setupLogging(ctx context.Context, cfg *config.Config) error {
	if err := logger.InitWithWriter(stderr, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}
