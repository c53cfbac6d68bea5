// Package catalog describes the read side of the relational store: the
// filtered, paginated listings served over HTTP.
package catalog

import "context"

const (
	DefaultPlayersSize = 20
	DefaultTeamsSize   = 50
	DefaultGamesSize   = 20
	MaxSize            = 500
	// MaxPage keeps Offset well inside int range at MaxSize.
	MaxPage = 1_000_000
)

// Player is a stored player.
type Player struct {
	ID     int64  `json:"id"`
	First  string `json:"first"`
	Last   string `json:"last"`
	Pos    string `json:"pos"`
	TeamID *int64 `json:"team_id"`
}

// Team is a stored team.
type Team struct {
	ID   int64  `json:"id"`
	Abbr string `json:"abbr"`
	Name string `json:"name"`
}

// Game is a stored game.
type Game struct {
	ID            int64  `json:"id"`
	Season        *int64 `json:"season"`
	Date          string `json:"date"`
	HomeTeamID    *int64 `json:"home_team_id"`
	VisitorTeamID *int64 `json:"visitor_team_id"`
	HomeScore     int64  `json:"home_score"`
	VisitorScore  int64  `json:"visitor_score"`
}

// Paging selects one page; pages start at 1.
type Paging struct {
	Page int
	Size int
}

// Offset is the number of rows before the page.
func (p Paging) Offset() int { return (p.Page - 1) * p.Size }

// Normalize fills unset values: page 1 and the given default size, capped at
// MaxSize.
func (p Paging) Normalize(defaultSize int) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = defaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// PlayerFilter narrows the players listing. Q matches first or last name,
// case-insensitively.
type PlayerFilter struct {
	Paging
	TeamID *int64
	Q      string
}

// GameFilter narrows the games listing. TeamID matches either side.
type GameFilter struct {
	Paging
	Season *int64
	TeamID *int64
}

// Page is one page of a listing with the total match count.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// Reader lists stored entities.
type Reader interface {
	Players(ctx context.Context, f PlayerFilter) (Page[Player], error)
	Teams(ctx context.Context, p Paging) (Page[Team], error)
	Games(ctx context.Context, f GameFilter) (Page[Game], error)
}
