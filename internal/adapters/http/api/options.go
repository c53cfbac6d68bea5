package api

import "github.com/okian/nbaetl/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithAPIKey requires the X-API-Key header on trigger and read routes.
// An empty key disables the check.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
