// Package paged collects records from a paginated JSON API.
//
// A fetch walks pages from 1 until the requested maximum is reached or a
// page comes back empty. A 429 waits for Retry-After and repeats the same
// page; any other failure waits the error cooldown and repeats it. Retries
// are bounded by an attempt budget per page and a wall-clock deadline per
// fetch; zero disables either bound.
package paged

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/nbaetl/internal/domain/model"
	"github.com/okian/nbaetl/pkg/logger"
	"github.com/okian/nbaetl/pkg/metrics"
)

var tracer = otel.Tracer("nbaetl.source.paged")

const (
	defaultPerPage          = 100
	defaultPacing           = 1500 * time.Millisecond
	defaultErrorCooldown    = 10 * time.Second
	defaultRateLimitDefault = 10 * time.Second
	defaultTimeout          = 30 * time.Second
)

// Resource names one paginated endpoint.
type Resource struct {
	// Name labels logs and metrics, e.g. "players".
	Name string
	Path string
	// Params are sent with every page request.
	Params map[string]string
	// File is the raw output file name; empty skips persisting.
	File string
}

// Players is the players endpoint.
func Players() Resource {
	return Resource{Name: "players", Path: "/players", File: model.RawPlayersFile}
}

// Games is the games endpoint filtered to one season.
func Games(season int) Resource {
	return Resource{
		Name:   "games",
		Path:   "/games",
		Params: map[string]string{"seasons[]": strconv.Itoa(season)},
		File:   model.RawGamesFile,
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// JSONWriter persists the collected records.
type JSONWriter interface {
	WriteJSON(path string, v any) error
}

// Fetcher is a rate-limit aware paginated collector.
type Fetcher struct {
	client *resty.Client

	perPage          int
	pacing           time.Duration
	errorCooldown    time.Duration
	rateLimitDefault time.Duration
	maxAttempts      int
	deadline         time.Duration

	sleep  Sleeper
	writer JSONWriter
	layout model.Layout
	logger logger.Logger
}

// New creates a Fetcher for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(defaultTimeout),
		perPage:          defaultPerPage,
		pacing:           defaultPacing,
		errorCooldown:    defaultErrorCooldown,
		rateLimitDefault: defaultRateLimitDefault,
		sleep:            Sleep,
		logger:           logger.Get().Named("fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch collects up to limit records of res and persists them when an output
// is configured.
func (f *Fetcher) Fetch(ctx context.Context, res Resource, limit int) ([]model.RawRecord, error) {
	parent := ctx
	if f.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.deadline)
		defer cancel()
	}

	out := make([]model.RawRecord, 0, limit)
	for page := 1; len(out) < limit; page++ {
		batch, err := f.fetchPage(ctx, res, page)
		if err != nil {
			if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s: %w", ErrDeadlineExceeded, res.Name, f.deadline, err)
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		out = append(out, batch...)
		f.logger.Info(ctx, "collected records",
			logger.String("resource", res.Name),
			logger.Int("page", page),
			logger.Int("total", len(out)))

		if len(out) < limit {
			if err := f.sleep(ctx, f.pacing); err != nil {
				return nil, f.ctxErr(parent, res, err)
			}
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}

	if f.writer != nil && res.File != "" {
		if err := f.writer.WriteJSON(f.layout.Path(res.File), out); err != nil {
			return nil, fmt.Errorf("persist %s: %w", res.Name, err)
		}
	}
	f.logger.Info(ctx, "finished fetching", logger.String("resource", res.Name), logger.Int("count", len(out)))
	return out, nil
}

func (f *Fetcher) ctxErr(parent context.Context, res Resource, err error) error {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrDeadlineExceeded, res.Name, f.deadline)
	}
	return err
}

// fetchPage requests one page until it succeeds or the retry budget is spent.
func (f *Fetcher) fetchPage(ctx context.Context, res Resource, page int) (batch []model.RawRecord, err error) {
	ctx, span := tracer.Start(ctx, "paged.fetchPage")
	span.SetAttributes(attribute.String("resource", res.Name), attribute.Int("page", page))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for attempt := 1; ; attempt++ {
		start := time.Now()
		resp, reqErr := f.client.R().
			SetContext(ctx).
			SetQueryParams(res.Params).
			SetQueryParam("per_page", strconv.Itoa(f.perPage)).
			SetQueryParam("page", strconv.Itoa(page)).
			Get(res.Path)

		var wait time.Duration
		var cause error
		switch {
		case reqErr != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			cause = reqErr
			wait = f.errorCooldown
			metrics.RecordFetchRetry(res.Name)
			f.logger.Warn(ctx, "request failed, retrying",
				logger.String("resource", res.Name), logger.Int("page", page),
				logger.Duration("wait", wait), logger.Error(reqErr))
		case resp.StatusCode() == http.StatusTooManyRequests:
			cause = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
			wait = retryAfter(resp.Header().Get("Retry-After"), f.rateLimitDefault, time.Now())
			metrics.RecordRateLimitWait(res.Name)
			f.logger.Warn(ctx, "rate limited",
				logger.String("resource", res.Name), logger.Int("page", page), logger.Duration("wait", wait))
		case !resp.IsSuccess():
			cause = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
			wait = f.errorCooldown
			metrics.RecordFetchRetry(res.Name)
			f.logger.Warn(ctx, "http error, retrying",
				logger.String("resource", res.Name), logger.Int("page", page),
				logger.Int("status", resp.StatusCode()), logger.Duration("wait", wait))
		default:
			records, decErr := decodePage(resp.Body())
			if decErr == nil {
				metrics.RecordPageFetched(res.Name, len(records), float64(time.Since(start).Milliseconds()))
				span.SetAttributes(attribute.Int("records", len(records)), attribute.Int("attempts", attempt))
				return records, nil
			}
			cause = decErr
			wait = f.errorCooldown
			metrics.RecordFetchRetry(res.Name)
			f.logger.Warn(ctx, "malformed page, retrying",
				logger.String("resource", res.Name), logger.Int("page", page),
				logger.Duration("wait", wait), logger.Error(decErr))
		}

		if f.maxAttempts > 0 && attempt >= f.maxAttempts {
			return nil, fmt.Errorf("%w: %s page %d after %d attempts: %w", ErrRetriesExhausted, res.Name, page, attempt, cause)
		}
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

type envelope struct {
	Data []model.RawRecord `json:"data"`
}

func decodePage(body []byte) ([]model.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return env.Data, nil
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h string, fallback time.Duration, now time.Time) time.Duration {
	h = strings.TrimSpace(h)
	if h == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

// Sleep waits for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
