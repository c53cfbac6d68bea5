// Package normalize reshapes raw API records into the flat player and game
// rows both sinks consume.
//
// Rules, in order: flatten nested objects to dotted paths, coerce a missing
// team reference to model.NoTeam, keep the first record per id, rename
// source fields and project onto the fixed column sets. Fields outside the
// projection are not written to the tables but stay in Extra.
package normalize

import (
	"github.com/okian/nbaetl/internal/domain/dedupe"
	"github.com/okian/nbaetl/internal/domain/model"
)

// Source field names and the target columns they become.
var (
	playerRenames = map[string]string{
		"first_name": "first",
		"last_name":  "last",
		"position":   "pos",
		"team.id":    "team_id",
	}
	gameRenames = map[string]string{
		"home_team.id":       "home_team_id",
		"visitor_team.id":    "visitor_team_id",
		"home_team_score":    "home_score",
		"visitor_team_score": "visitor_score",
	}
)

// Batch is the outcome of normalizing one entity's raw records.
type Batch[T any] struct {
	Records []T
	// Duplicates counts records dropped because their id was already seen.
	Duplicates int
	// MissingID counts records dropped because they carried no usable id.
	MissingID int
}

type flatRecord struct {
	id   int64
	flat map[string]any
}

func flattenAll(raws []model.RawRecord) ([]flatRecord, int, int) {
	flats := make([]flatRecord, 0, len(raws))
	missing := 0
	for _, r := range raws {
		id, ok := r.ID()
		if !ok {
			missing++
			continue
		}
		flats = append(flats, flatRecord{id: id, flat: r.Flatten()})
	}
	kept, dups := dedupe.FirstSeen(flats, func(f flatRecord) (int64, bool) { return f.id, true })
	return kept, dups, missing
}

// Players normalizes raw player records.
func Players(raws []model.RawRecord) Batch[model.Player] {
	flats, dups, missing := flattenAll(raws)
	out := Batch[model.Player]{Records: make([]model.Player, 0, len(flats)), Duplicates: dups, MissingID: missing}
	for _, f := range flats {
		teamID, ok := model.AsInt64(f.flat["team.id"])
		if !ok {
			teamID = model.NoTeam
		}
		out.Records = append(out.Records, model.Player{
			ID:     f.id,
			First:  model.AsString(f.flat["first_name"]),
			Last:   model.AsString(f.flat["last_name"]),
			Pos:    model.AsString(f.flat["position"]),
			TeamID: teamID,
			Extra:  extra(f.flat, playerRenames),
		})
	}
	return out
}

// Games normalizes raw game records. Absent numeric fields stay nil.
func Games(raws []model.RawRecord) Batch[model.Game] {
	flats, dups, missing := flattenAll(raws)
	out := Batch[model.Game]{Records: make([]model.Game, 0, len(flats)), Duplicates: dups, MissingID: missing}
	for _, f := range flats {
		out.Records = append(out.Records, model.Game{
			ID:            f.id,
			Season:        optInt(f.flat["season"]),
			Date:          model.AsString(f.flat["date"]),
			HomeTeamID:    optInt(f.flat["home_team.id"]),
			VisitorTeamID: optInt(f.flat["visitor_team.id"]),
			HomeScore:     optInt(f.flat["home_team_score"]),
			VisitorScore:  optInt(f.flat["visitor_team_score"]),
			Extra:         extra(f.flat, gameRenames, "season", "date"),
		})
	}
	return out
}

func optInt(v any) *int64 {
	i, ok := model.AsInt64(v)
	if !ok {
		return nil
	}
	return &i
}

// extra keeps every flattened field that did not become a projected column.
func extra(flat map[string]any, renames map[string]string, projected ...string) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		if k == model.IDField {
			continue
		}
		if _, ok := renames[k]; ok {
			continue
		}
		out[k] = v
	}
	for _, k := range projected {
		delete(out, k)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
