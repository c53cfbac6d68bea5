package pipeline

import "github.com/okian/nbaetl/pkg/logger"

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLimits caps how many players and games are fetched.
func WithLimits(maxPlayers, maxGames int) Option {
	return func(p *Pipeline) {
		if maxPlayers >= 0 {
			p.maxPlayers = maxPlayers
		}
		if maxGames >= 0 {
			p.maxGames = maxGames
		}
	}
}

// WithSeason selects the season whose games are fetched.
func WithSeason(season int) Option {
	return func(p *Pipeline) {
		if season > 0 {
			p.season = season
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
