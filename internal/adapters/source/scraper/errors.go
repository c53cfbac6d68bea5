package scraper

import "errors"

var (
	// ErrFetchFailed is logged when every page request failed. It never
	// leaves Scrape.
	ErrFetchFailed = errors.New("scrape fetch failed")
	// ErrMalformedTable marks a table that yielded no usable grid.
	ErrMalformedTable = errors.New("malformed table")
)
