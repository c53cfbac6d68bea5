// Package scraper pulls tables out of one HTML page on a best-effort basis.
// Nothing here fails the caller: a page that cannot be fetched yields an
// empty result and a warning.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

var tracer = otel.Tracer("nbaetl.source.scraper")

const (
	// DefaultURL is the NBA MVP award article.
	DefaultURL = "https://en.wikipedia.org/wiki/NBA_Most_Valuable_Player_Award"

	defaultAttempts    = 3
	defaultBackoffUnit = time.Second
	defaultTableClass  = "wikitable"
	defaultTimeout     = 30 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// CSVWriter persists one table.
type CSVWriter interface {
	WriteCSV(path string, header []string, rows [][]any) error
}

// Result describes one scrape.
type Result struct {
	Fetched bool
	Tables  []Table
	// Files holds the paths written, one per table that was persisted.
	Files []string
}

// Scraper fetches a page and extracts its tables.
type Scraper struct {
	client      *resty.Client
	url         string
	attempts    int
	backoffUnit time.Duration
	tableClass  string

	sleep  Sleeper
	writer CSVWriter
	layout model.Layout
	logger logger.Logger
}

// New creates a Scraper for url.
func New(url string, opts ...Option) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	s := &Scraper{
		client: resty.New().
			SetTimeout(defaultTimeout).
			SetHeaders(map[string]string{
				"User-Agent":      userAgent,
				"Accept":          "text/html,application/xhtml+xml",
				"Accept-Language": "en-US,en;q=0.9",
				"Referer":         "https://en.wikipedia.org/",
			}),
		url:         url,
		attempts:    defaultAttempts,
		backoffUnit: defaultBackoffUnit,
		tableClass:  defaultTableClass,
		sleep:       sleep,
		logger:      logger.Get().Named("scraper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches the page, extracts every matching table and writes each to
// its own CSV file. It never returns an error.
func (s *Scraper) Scrape(ctx context.Context) Result {
	ctx, span := tracer.Start(ctx, "scraper.Scrape")
	defer span.End()
	span.SetAttributes(attribute.String("url", s.url))

	body, err := s.fetch(ctx)
	if err != nil {
		metrics.RecordScrapeAttempt("failed")
		span.SetAttributes(attribute.Bool("fetched", false))
		s.logger.Warn(ctx, "scrape skipped, continuing without it",
			logger.String("url", s.url), logger.Error(err))
		return Result{}
	}
	metrics.RecordScrapeAttempt("ok")

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		s.logger.Warn(ctx, "unparseable page", logger.String("url", s.url), logger.Error(err))
		return Result{Fetched: true}
	}

	tables, errs := ParseTables(doc, s.tableClass)
	for _, e := range errs {
		s.logger.Warn(ctx, "table skipped", logger.Error(e))
	}

	res := Result{Fetched: true, Tables: tables}
	for i, t := range tables {
		if s.writer == nil {
			break
		}
		path := s.layout.Path(fmt.Sprintf(model.ScrapeTablePattern, i+1))
		if err := s.writer.WriteCSV(path, t.Header, cellRows(t.Rows)); err != nil {
			s.logger.Warn(ctx, "table not saved", logger.String("path", path), logger.Error(err))
			continue
		}
		metrics.RecordScrapeTable()
		res.Files = append(res.Files, path)
	}
	span.SetAttributes(attribute.Int("tables", len(tables)))
	s.logger.Info(ctx, "scrape complete", logger.Int("tables", len(tables)), logger.Int("files", len(res.Files)))
	return res
}

// fetch retries with a doubling backoff of 2, 4, 8... units between attempts.
func (s *Scraper) fetch(ctx context.Context) ([]byte, error) {
	var last error
	for attempt := 0; attempt < s.attempts; attempt++ {
		resp, err := s.client.R().SetContext(ctx).Get(s.url)
		switch {
		case err != nil:
			last = err
		case resp.IsSuccess():
			return resp.Body(), nil
		default:
			last = fmt.Errorf("status %d", resp.StatusCode())
		}
		s.logger.Warn(ctx, "scrape attempt failed",
			logger.Int("attempt", attempt+1), logger.Int("of", s.attempts), logger.Error(last))

		if attempt+1 < s.attempts {
			wait := time.Duration(1<<attempt) * 2 * s.backoffUnit
			if err := s.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrFetchFailed, s.attempts, last)
}

func cellRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(r))
		for j, c := range r {
			row[j] = c
		}
		out[i] = row
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
