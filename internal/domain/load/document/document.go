// Package document loads normalized records into document collections with
// upsert semantics keyed on the business id.
package document

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

var tracer = otel.Tracer("nbaetl.load.document")

// Collection names.
const (
	PlayersCollection = "raw_players"
	GamesCollection   = "raw_stats"
)

// Doc is one document as written to a collection.
type Doc = map[string]any

// UpsertResult summarises one unordered bulk upsert.
type UpsertResult struct {
	Matched  int64
	Modified int64
	Upserted int64
	// WriteErrors counts documents the store rejected; the rest were applied.
	WriteErrors int
}

// Collection is the document-store surface the loader needs.
type Collection interface {
	Name() string
	// DuplicateGroups returns, per business key holding more than one
	// document, the store-internal ids of those documents.
	DuplicateGroups(ctx context.Context, key string) ([][]any, error)
	// DeleteInternal removes documents by store-internal id.
	DeleteInternal(ctx context.Context, ids []any) (int64, error)
	EnsureUniqueIndex(ctx context.Context, key string) error
	// BulkUpsert issues one unordered batch. A partial failure returns the
	// applied counts together with an error wrapping ErrBulkPartial.
	BulkUpsert(ctx context.Context, key string, docs []Doc) (UpsertResult, error)
}

// Files writes the audit snapshots.
type Files interface {
	WriteCSV(path string, header []string, rows [][]any) error
	WriteJSON(path string, v any) error
}

// CollectionResult reports what happened to one collection.
type CollectionResult struct {
	Removed    int64
	IndexError error
	Upsert     UpsertResult
}

// Result reports a whole document load.
type Result struct {
	Players CollectionResult
	Games   CollectionResult
}

// Loader is the document sink.
type Loader struct {
	players Collection
	games   Collection
	files   Files
	layout  model.Layout
	logger  logger.Logger
}

// New creates a Loader writing players and games to the given collections
// and snapshots under layout.
func New(players, games Collection, files Files, layout model.Layout, opts ...Option) *Loader {
	l := &Loader{
		players: players,
		games:   games,
		files:   files,
		layout:  layout,
		logger:  logger.Get().Named("document"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load snapshots the records to disk, deduplicates both collections,
// declares the unique index and upserts every record with an id.
// Partial store failures are logged; only hard errors are returned.
func (l *Loader) Load(ctx context.Context, players []model.Player, games []model.Game) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "document.Load")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	playerDocs := make([]Doc, len(players))
	for i, p := range players {
		playerDocs[i] = p.Document()
	}
	gameDocs := make([]Doc, len(games))
	for i, g := range games {
		gameDocs[i] = g.Document()
	}
	span.SetAttributes(attribute.Int("players", len(playerDocs)), attribute.Int("games", len(gameDocs)))

	l.snapshot(ctx, model.PlayersSnapshotCSV, model.PlayersSnapshotJSON, model.PlayerColumns, playerDocs)
	l.snapshot(ctx, model.GamesSnapshotCSV, model.GamesSnapshotJSON, model.GameColumns, gameDocs)

	res.Players.Removed = l.dedupe(ctx, l.players)
	res.Games.Removed = l.dedupe(ctx, l.games)

	res.Players.IndexError = l.ensureIndex(ctx, l.players)
	res.Games.IndexError = l.ensureIndex(ctx, l.games)

	if res.Players.Upsert, err = l.upsert(ctx, l.players, playerDocs); err != nil {
		return res, err
	}
	if res.Games.Upsert, err = l.upsert(ctx, l.games, gameDocs); err != nil {
		return res, err
	}

	l.logger.Info(ctx, "document load complete",
		logger.Int64("players_upserted", res.Players.Upsert.Upserted),
		logger.Int64("players_modified", res.Players.Upsert.Modified),
		logger.Int64("games_upserted", res.Games.Upsert.Upserted),
		logger.Int64("games_modified", res.Games.Upsert.Modified))
	return res, nil
}

// Dedupe removes all but one document for every duplicated business key and
// returns how many were removed. The survivor is whichever the store lists
// first.
func Dedupe(ctx context.Context, c Collection) (int64, error) {
	groups, err := c.DuplicateGroups(ctx, model.IDField)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		n, err := c.DeleteInternal(ctx, ids[1:])
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (l *Loader) dedupe(ctx context.Context, c Collection) int64 {
	removed, err := Dedupe(ctx, c)
	if err != nil {
		l.logger.Warn(ctx, "dedup warning", logger.String("collection", c.Name()), logger.Error(err))
	}
	if removed > 0 {
		metrics.RecordCollectionDuplicatesRemoved(c.Name(), removed)
		l.logger.Warn(ctx, "removed duplicated documents",
			logger.String("collection", c.Name()),
			logger.String("key", model.IDField),
			logger.Int64("removed", removed))
	}
	return removed
}

func (l *Loader) ensureIndex(ctx context.Context, c Collection) error {
	err := c.EnsureUniqueIndex(ctx, model.IDField)
	if err != nil {
		metrics.RecordErrorByComponent("document", "index")
		l.logger.Warn(ctx, "index creation warning", logger.String("collection", c.Name()), logger.Error(err))
	}
	return err
}

func (l *Loader) upsert(ctx context.Context, c Collection, docs []Doc) (UpsertResult, error) {
	withID := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if d[model.IDField] != nil {
			withID = append(withID, d)
		}
	}
	if len(withID) == 0 {
		return UpsertResult{}, nil
	}

	res, err := c.BulkUpsert(ctx, model.IDField, withID)
	metrics.RecordDocumentsUpserted(c.Name(), res.Upserted, res.Modified)
	switch {
	case err == nil:
	case errors.Is(err, ErrBulkPartial):
		metrics.RecordDocumentWriteErrors(c.Name(), res.WriteErrors)
		l.logger.Warn(ctx, "bulk write warning",
			logger.String("collection", c.Name()),
			logger.Int("write_errors", res.WriteErrors),
			logger.Error(err))
	default:
		return res, fmt.Errorf("upsert %s: %w", c.Name(), err)
	}
	return res, nil
}

// snapshot mirrors docs to CSV and JSON. Failures are logged only.
func (l *Loader) snapshot(ctx context.Context, csvName, jsonName string, columns []string, docs []Doc) {
	header, rows := tabulate(columns, docs)
	if err := l.files.WriteCSV(l.layout.Path(csvName), header, rows); err != nil {
		l.logger.Warn(ctx, "snapshot write failed", logger.String("file", csvName), logger.Error(err))
	}
	if err := l.files.WriteJSON(l.layout.Path(jsonName), docs); err != nil {
		l.logger.Warn(ctx, "snapshot write failed", logger.String("file", jsonName), logger.Error(err))
	}
}

// tabulate flattens documents into a table: projected columns first, then
// every other flattened field in sorted order.
func tabulate(columns []string, docs []Doc) ([]string, [][]any) {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c] = struct{}{}
	}
	flats := make([]map[string]any, len(docs))
	extraSet := map[string]struct{}{}
	for i, d := range docs {
		flats[i] = model.RawRecord(d).Flatten()
		for k := range flats[i] {
			if _, ok := known[k]; !ok {
				extraSet[k] = struct{}{}
			}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	header := append(append([]string{}, columns...), extras...)
	rows := make([][]any, len(flats))
	for i, f := range flats {
		row := make([]any, len(header))
		for j, h := range header {
			row[j] = f[h]
		}
		rows[i] = row
	}
	return header, rows
}
