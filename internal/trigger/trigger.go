// Package trigger talks to a running server: it queues pipeline runs and
// follows them until they finish.
package trigger

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/nbaetl/internal/adapters/http/api"
	service "github.com/okian/nbaetl/internal/app"
	"github.com/okian/nbaetl/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	defaultPoll    = 2 * time.Second
)

// Accepted is the server's acknowledgement of a queued run.
type Accepted struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client queues and follows runs on one server.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	poll    time.Duration
	client  *resty.Client
	logger  logger.Logger
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		timeout: defaultTimeout,
		poll:    defaultPoll,
		logger:  logger.Get().Named("trigger"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")
	if c.apiKey != "" {
		c.client.SetHeader(api.APIKeyHeader, c.apiKey)
	}
	return c
}

// Start queues one run.
func (c *Client) Start(ctx context.Context) (Accepted, error) {
	var (
		out  Accepted
		fail apiError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&fail).
		Post("/run-etl")
	if err != nil {
		return Accepted{}, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		c.logger.Info(ctx, "run queued", logger.String("run_id", out.RunID))
		return out, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusUnauthorized:
		return Accepted{}, fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode(), fail.Message)
	default:
		return Accepted{}, fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode())
	}
}

// Run returns the current state of a run.
func (c *Client) Run(ctx context.Context, id string) (service.Run, error) {
	var (
		out  service.Run
		fail apiError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&out).
		SetError(&fail).
		Get("/runs/{id}")
	if err != nil {
		return service.Run{}, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return out, nil
	case http.StatusNotFound:
		return service.Run{}, fmt.Errorf("%w: %s", service.ErrRunNotFound, id)
	default:
		return service.Run{}, fmt.Errorf("%w: status %d %s", ErrRequest, resp.StatusCode(), fail.Message)
	}
}

// Wait polls a run until it reaches a final state or ctx ends.
func (c *Client) Wait(ctx context.Context, id string) (service.Run, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		run, err := c.Run(ctx, id)
		if err != nil {
			return service.Run{}, err
		}
		if run.Status.Done() {
			return run, nil
		}
		c.logger.Debug(ctx, "run in progress", logger.String("run_id", id), logger.String("status", string(run.Status)))

		select {
		case <-ctx.Done():
			return run, fmt.Errorf("waiting for run %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
