package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/nbaetl/internal/adapters/source/auxiliary"
	"github.com/okian/nbaetl/internal/adapters/source/paged"
	"github.com/okian/nbaetl/internal/adapters/source/scraper"
	"github.com/okian/nbaetl/internal/domain/load/document"
	"github.com/okian/nbaetl/internal/domain/load/relational"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/internal/domain/normalize"
	"github.com/okian/nbaetl/internal/pipeline"
	"github.com/okian/nbaetl/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func raw(s string) []model.RawRecord {
	var out []model.RawRecord
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		panic(err)
	}
	return out
}

var (
	rawPlayers = raw(`[
		{"id": 1, "first_name": "A", "last_name": "One", "position": "G", "team": {"id": 10, "abbreviation": "AAA", "full_name": "Alpha"}},
		{"id": 1, "first_name": "Dup", "last_name": "One", "position": "G"},
		{"id": 2, "first_name": "B", "last_name": "Two", "position": "F"}
	]`)
	rawGames = raw(`[
		{"id": 7, "season": 2023, "date": "2023-10-24",
		 "home_team": {"id": 10, "abbreviation": "AAA", "full_name": "Alpha"},
		 "visitor_team": {"id": 20, "abbreviation": "BBB", "full_name": "Beta"},
		 "home_team_score": 100, "visitor_team_score": 90}
	]`)
)

// fakes records the order stages were called in.
type fakes struct {
	calls []string

	fetchErr      error
	fetchedParams []map[string]string
	scraped       scraper.Result
	auxErr        error
	auxTeams      []model.Team
	normSkipped   bool
	relErr        error
	relPlayers    []model.SourcePlayer
	docPlayers    []model.Player
	docGames      []model.Game
	docResult     document.Result
}

func (f *fakes) Fetch(_ context.Context, res paged.Resource, limit int) ([]model.RawRecord, error) {
	f.calls = append(f.calls, "fetch:"+res.Name)
	f.fetchedParams = append(f.fetchedParams, res.Params)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	recs := rawPlayers
	if res.Name == "games" {
		recs = rawGames
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *fakes) Scrape(context.Context) scraper.Result {
	f.calls = append(f.calls, "scrape")
	return f.scraped
}

func (f *fakes) Run(_ context.Context, teams []model.Team) (auxiliary.Result, error) {
	f.calls = append(f.calls, "auxiliary")
	f.auxTeams = teams
	return auxiliary.Result{MirroredTeams: int64(len(teams))}, f.auxErr
}

type normalizer struct{ f *fakes }

func (n normalizer) Run(context.Context) (normalize.Result, error) {
	n.f.calls = append(n.f.calls, "transform")
	if n.f.normSkipped {
		return normalize.Result{Skipped: true}, nil
	}
	return normalize.Result{Players: normalize.Players(rawPlayers), Games: normalize.Games(rawGames)}, nil
}

type relLoader struct{ f *fakes }

func (r relLoader) Load(_ context.Context, players []model.SourcePlayer, _ []model.SourceGame) (relational.Result, error) {
	r.f.calls = append(r.f.calls, "relational")
	r.f.relPlayers = players
	return relational.Result{Players: int64(len(players))}, r.f.relErr
}

type docLoader struct{ f *fakes }

func (d docLoader) Load(_ context.Context, players []model.Player, games []model.Game) (document.Result, error) {
	d.f.calls = append(d.f.calls, "document")
	d.f.docPlayers, d.f.docGames = players, games
	return d.f.docResult, nil
}

func newPipeline(f *fakes, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(pipeline.Stages{
		Fetcher:    f,
		Scraper:    f,
		Auxiliary:  f,
		Normalizer: normalizer{f},
		Relational: relLoader{f},
		Document:   docLoader{f},
	}, append([]pipeline.Option{pipeline.WithLogger(logger.Nop())}, opts...)...)
}

func stageNames(rep pipeline.Report) []string {
	out := make([]string, len(rep.Stages))
	for i, s := range rep.Stages {
		out[i] = s.Stage + "=" + s.Outcome
	}
	return out
}

func TestPipelineRun(t *testing.T) {
	Convey("Given healthy stages", t, func() {
		f := &fakes{scraped: scraper.Result{Fetched: true, Tables: make([]scraper.Table, 2)}}
		p := newPipeline(f, pipeline.WithSeason(2022), pipeline.WithLimits(10, 10))

		rep, err := p.Run(context.Background(), "run-1")

		Convey("Then every stage should run in order", func() {
			So(err, ShouldBeNil)
			So(f.calls, ShouldResemble, []string{
				"fetch:players", "fetch:games", "scrape", "auxiliary", "transform", "relational", "document",
			})
			So(stageNames(rep), ShouldResemble, []string{
				"extract=ok", "scrape=ok", "auxiliary=ok", "transform=ok", "relational=ok", "document=ok",
			})
			So(rep.RunID, ShouldEqual, "run-1")
		})

		Convey("Then the games fetch should use the configured season", func() {
			So(f.fetchedParams[1], ShouldResemble, map[string]string{"seasons[]": "2022"})
		})

		Convey("Then derived teams should feed the auxiliary mirror", func() {
			So(f.auxTeams, ShouldResemble, []model.Team{
				{ID: 10, Abbr: "AAA", Name: "Alpha"},
				{ID: 20, Abbr: "BBB", Name: "Beta"},
			})
		})

		Convey("Then loaders should get typed and normalized records", func() {
			So(f.relPlayers, ShouldHaveLength, 3)
			So(f.docPlayers, ShouldHaveLength, 2)
			So(f.docPlayers[0].First, ShouldEqual, "A")
			So(f.docGames, ShouldHaveLength, 1)
		})
	})

	Convey("Given a scraper that cannot reach its page", t, func() {
		f := &fakes{}
		rep, err := newPipeline(f).Run(context.Background(), "run-2")

		Convey("Then the run should continue and report the scrape as degraded", func() {
			So(err, ShouldBeNil)
			s, ok := rep.Stage(pipeline.StageScrape)
			So(ok, ShouldBeTrue)
			So(s.Outcome, ShouldEqual, pipeline.OutcomeDegraded)
			So(f.calls[len(f.calls)-1], ShouldEqual, "document")
		})
	})

	Convey("Given an API extraction failure", t, func() {
		f := &fakes{fetchErr: paged.ErrRetriesExhausted}
		rep, err := newPipeline(f).Run(context.Background(), "run-3")

		Convey("Then the run should abort before any other stage", func() {
			So(errors.Is(err, pipeline.ErrStage), ShouldBeTrue)
			So(errors.Is(err, paged.ErrRetriesExhausted), ShouldBeTrue)
			So(f.calls, ShouldResemble, []string{"fetch:players"})
			So(stageNames(rep), ShouldResemble, []string{"extract=failed"})
			So(rep.Stages[0].Error, ShouldContainSubstring, "players")
		})
	})

	Convey("Given an auxiliary failure", t, func() {
		f := &fakes{auxErr: auxiliary.ErrMirror}
		_, err := newPipeline(f).Run(context.Background(), "run-4")

		Convey("Then it should propagate", func() {
			So(errors.Is(err, auxiliary.ErrMirror), ShouldBeTrue)
			So(f.calls[len(f.calls)-1], ShouldEqual, "auxiliary")
		})
	})

	Convey("Given a normalizer without its input files", t, func() {
		f := &fakes{normSkipped: true}
		rep, err := newPipeline(f).Run(context.Background(), "run-5")

		Convey("Then the records should be normalized in memory", func() {
			So(err, ShouldBeNil)
			s, _ := rep.Stage(pipeline.StageTransform)
			So(s.Outcome, ShouldEqual, pipeline.OutcomeDegraded)
			So(s.Detail, ShouldContainSubstring, "1 duplicates dropped")
			So(f.docPlayers, ShouldHaveLength, 2)
		})
	})

	Convey("Given a relational load failure", t, func() {
		f := &fakes{relErr: relational.ErrLoad}
		rep, err := newPipeline(f).Run(context.Background(), "run-6")

		Convey("Then the document load should not run", func() {
			So(errors.Is(err, relational.ErrLoad), ShouldBeTrue)
			So(f.calls, ShouldNotContain, "document")
			So(rep.Stages, ShouldHaveLength, 5)
		})
	})

	Convey("Given a document load with store warnings", t, func() {
		f := &fakes{docResult: document.Result{Players: document.CollectionResult{IndexError: errors.New("dup key")}}}
		rep, err := newPipeline(f).Run(context.Background(), "run-7")

		Convey("Then the run should succeed with a degraded document stage", func() {
			So(err, ShouldBeNil)
			s, _ := rep.Stage(pipeline.StageDocument)
			So(s.Outcome, ShouldEqual, pipeline.OutcomeDegraded)
		})
	})
}
