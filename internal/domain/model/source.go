package model

import "fmt"

// SourceTeam is the team object nested in players and games. ID is nil when
// the source carries no usable team id.
type SourceTeam struct {
	ID           *int64 `json:"id"`
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"full_name"`
}

// SourcePlayer is the typed view of a raw player record.
type SourcePlayer struct {
	ID        *int64      `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Position  string      `json:"position"`
	Team      *SourceTeam `json:"team"`
}

// SourceGame is the typed view of a raw game record.
type SourceGame struct {
	ID               *int64      `json:"id"`
	Season           *int64      `json:"season"`
	Date             string      `json:"date"`
	HomeTeam         *SourceTeam `json:"home_team"`
	VisitorTeam      *SourceTeam `json:"visitor_team"`
	HomeTeamScore    *int64      `json:"home_team_score"`
	VisitorTeamScore *int64      `json:"visitor_team_score"`
}

// DecodePlayers converts raw player records into their typed view. Numeric
// fields are coerced like the normalizer does; values that cannot be coerced
// are left nil. Only a nested team that is not an object is an error.
func DecodePlayers(raws []RawRecord) ([]SourcePlayer, error) {
	out := make([]SourcePlayer, 0, len(raws))
	for i, r := range raws {
		team, err := decodeTeam(r["team"])
		if err != nil {
			return nil, fmt.Errorf("record %d: team: %w", i, err)
		}
		out = append(out, SourcePlayer{
			ID:        optionalInt64(r["id"]),
			FirstName: AsString(r["first_name"]),
			LastName:  AsString(r["last_name"]),
			Position:  AsString(r["position"]),
			Team:      team,
		})
	}
	return out, nil
}

// DecodeGames converts raw game records into their typed view with the same
// coercion rules as DecodePlayers.
func DecodeGames(raws []RawRecord) ([]SourceGame, error) {
	out := make([]SourceGame, 0, len(raws))
	for i, r := range raws {
		home, err := decodeTeam(r["home_team"])
		if err != nil {
			return nil, fmt.Errorf("record %d: home_team: %w", i, err)
		}
		visitor, err := decodeTeam(r["visitor_team"])
		if err != nil {
			return nil, fmt.Errorf("record %d: visitor_team: %w", i, err)
		}
		out = append(out, SourceGame{
			ID:               optionalInt64(r["id"]),
			Season:           optionalInt64(r["season"]),
			Date:             AsString(r["date"]),
			HomeTeam:         home,
			VisitorTeam:      visitor,
			HomeTeamScore:    optionalInt64(r["home_team_score"]),
			VisitorTeamScore: optionalInt64(r["visitor_team_score"]),
		})
	}
	return out, nil
}

func decodeTeam(v any) (*SourceTeam, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	return &SourceTeam{
		ID:           optionalInt64(m["id"]),
		Abbreviation: AsString(m["abbreviation"]),
		FullName:     AsString(m["full_name"]),
	}, nil
}

func optionalInt64(v any) *int64 {
	n, ok := AsInt64(v)
	if !ok {
		return nil
	}
	return &n
}
