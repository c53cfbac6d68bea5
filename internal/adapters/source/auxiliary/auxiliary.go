// Package auxiliary produces the side outputs of a run: a SQLite mirror of
// the teams seen, a per-season stat sheet and a synthetic event log.
package auxiliary

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/nbaetl/internal/adapters/files"
	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

const defaultEventCount = 5000

// StatLine is one row of the extra stats sheet.
type StatLine struct {
	PlayerID int64
	Season   int64
	PTS      float64
	REB      float64
	AST      float64
}

// DefaultStats seeds the stats sheet.
var DefaultStats = []StatLine{{PlayerID: 237, Season: 2023, PTS: 29.8, REB: 8.2, AST: 6.4}}

var statColumns = []string{"player_id", "season", "pts", "reb", "ast"}

// Event is one line of the event log.
type Event struct {
	PlayerID  int64  `json:"player_id"`
	Event     string `json:"event"`
	Value     int    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Result counts what each extraction produced.
type Result struct {
	MirroredTeams int64
	StatRows      int
	Events        int
}

// Extractor runs the auxiliary extractions.
type Extractor struct {
	layout     model.Layout
	eventCount int
	stats      []StatLine
	now        func() time.Time
	logger     logger.Logger
}

// New creates an Extractor writing under layout.
func New(layout model.Layout, opts ...Option) *Extractor {
	e := &Extractor{
		layout:     layout,
		eventCount: defaultEventCount,
		stats:      DefaultStats,
		now:        time.Now,
		logger:     logger.Get().Named("auxiliary"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs all extractions in order and stops at the first failure.
func (e *Extractor) Run(ctx context.Context, teams []model.Team) (Result, error) {
	var res Result
	var err error

	if res.MirroredTeams, err = e.Mirror(ctx, teams); err != nil {
		metrics.RecordAuxExtraction("mirror", "error")
		return res, err
	}
	metrics.RecordAuxExtraction("mirror", "ok")

	if res.StatRows, err = e.Stats(); err != nil {
		metrics.RecordAuxExtraction("stats", "error")
		return res, err
	}
	metrics.RecordAuxExtraction("stats", "ok")

	if res.Events, err = e.Events(); err != nil {
		metrics.RecordAuxExtraction("events", "error")
		return res, err
	}
	metrics.RecordAuxExtraction("events", "ok")

	e.logger.Info(ctx, "auxiliary extractions complete",
		logger.Int64("mirrored_teams", res.MirroredTeams),
		logger.Int("stat_rows", res.StatRows),
		logger.Int("events", res.Events))
	return res, nil
}

// Mirror inserts every team into the SQLite mirror, ignoring ids already
// present. It returns the number of new rows.
func (e *Extractor) Mirror(ctx context.Context, teams []model.Team) (int64, error) {
	if err := os.MkdirAll(e.layout.Dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMirror, err)
	}
	db, err := sql.Open("sqlite", e.layout.Path(model.MirrorDBFile))
	if err != nil {
		return 0, fmt.Errorf("%w: open: %w", ErrMirror, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS mirror_teams (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		return 0, fmt.Errorf("%w: schema: %w", ErrMirror, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %w", ErrMirror, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO mirror_teams (id, name) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("%w: prepare: %w", ErrMirror, err)
	}
	defer stmt.Close()

	var inserted int64
	for _, t := range teams {
		r, err := stmt.ExecContext(ctx, t.ID, t.Name)
		if err != nil {
			return 0, fmt.Errorf("%w: team %d: %w", ErrMirror, t.ID, err)
		}
		n, _ := r.RowsAffected()
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", ErrMirror, err)
	}
	return inserted, nil
}

// Stats writes the stat sheet.
func (e *Extractor) Stats() (int, error) {
	rows := make([][]any, len(e.stats))
	for i, s := range e.stats {
		rows[i] = []any{s.PlayerID, s.Season, s.PTS, s.REB, s.AST}
	}
	if err := files.WriteCSV(e.layout.Path(model.ExtraStatsFile), statColumns, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Events writes the synthetic scoring log, one JSON document per line.
func (e *Extractor) Events() (int, error) {
	ts := e.now().UTC().Format(time.RFC3339)
	events := make([]Event, e.eventCount)
	for i := range events {
		events[i] = Event{PlayerID: int64(100 + i), Event: "score", Value: 2, Timestamp: ts}
	}
	if err := files.WriteJSONLines(e.layout.Path(model.EventLogFile), events); err != nil {
		return 0, err
	}
	return len(events), nil
}
