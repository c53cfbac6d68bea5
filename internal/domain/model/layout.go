package model

import "path/filepath"

// File names inside a run's raw directory.
const (
	RawPlayersFile      = "api_players.json"
	RawGamesFile        = "api_games.json"
	NormPlayersFile     = "players_norm.csv"
	NormGamesFile       = "games_norm.csv"
	PlayersSnapshotCSV  = "players.csv"
	GamesSnapshotCSV    = "stats.csv"
	PlayersSnapshotJSON = "players.json"
	GamesSnapshotJSON   = "stats.json"
	ExtraStatsFile      = "extra_stats.csv"
	EventLogFile        = "bigdata.jsonl"
	MirrorDBFile        = "mirror.db"
	ScrapeTablePattern  = "mvp_wiki_table_%d.csv"
)

// Layout resolves artefact paths under one raw directory.
type Layout struct {
	Dir string
}

// Path joins name onto the raw directory.
func (l Layout) Path(name string) string {
	return filepath.Join(l.Dir, name)
}
