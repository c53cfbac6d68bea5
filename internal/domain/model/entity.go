package model

// NoTeam marks a player without a team reference.
const NoTeam int64 = -1

// Player is a normalized player row.
type Player struct {
	ID     int64  `json:"id"`
	First  string `json:"first"`
	Last   string `json:"last"`
	Pos    string `json:"pos"`
	TeamID int64  `json:"team_id"`
	// Extra holds the flattened source fields the projection dropped.
	Extra map[string]any `json:"-"`
}

// Game is a normalized game row. Nil pointers mean the source had no value.
type Game struct {
	ID            int64          `json:"id"`
	Season        *int64         `json:"season"`
	Date          string         `json:"date"`
	HomeTeamID    *int64         `json:"home_team_id"`
	VisitorTeamID *int64         `json:"visitor_team_id"`
	HomeScore     *int64         `json:"home_score"`
	VisitorScore  *int64         `json:"visitor_score"`
	Extra         map[string]any `json:"-"`
}

// Team is derived from nested references, never fetched directly.
type Team struct {
	ID   int64
	Abbr string
	Name string
}

// Season is a bare year marker.
type Season struct {
	Year int64
}

// PlayerColumns is the projected column order of normalized players.
var PlayerColumns = []string{"id", "first", "last", "pos", "team_id"}

// GameColumns is the projected column order of normalized games.
var GameColumns = []string{"id", "season", "date", "home_team_id", "visitor_team_id", "home_score", "visitor_score"}

// Row renders the player in PlayerColumns order.
func (p Player) Row() []any {
	return []any{p.ID, p.First, p.Last, p.Pos, p.TeamID}
}

// Row renders the game in GameColumns order; absent values are nil.
func (g Game) Row() []any {
	return []any{g.ID, ptrValue(g.Season), g.Date, ptrValue(g.HomeTeamID), ptrValue(g.VisitorTeamID), ptrValue(g.HomeScore), ptrValue(g.VisitorScore)}
}

// Document is the shape persisted in the document store: the projected
// fields plus every extra source field, re-nested.
func (p Player) Document() map[string]any {
	return buildDocument(PlayerColumns, p.Row(), p.Extra)
}

// Document is the shape persisted in the document store.
func (g Game) Document() map[string]any {
	return buildDocument(GameColumns, g.Row(), g.Extra)
}

func buildDocument(cols []string, row []any, extra map[string]any) map[string]any {
	flat := make(map[string]any, len(cols)+len(extra))
	for k, v := range extra {
		flat[k] = v
	}
	for i, c := range cols {
		flat[c] = row[i]
	}
	return Unflatten(flat)
}

func ptrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
