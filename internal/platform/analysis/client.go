// Package analysis starts runs of the external image analysis pipeline.
// The pipeline reports progress back through the status change endpoint;
// this package only submits the job.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTriggerFailed is returned when the pipeline does not accept a job.
var ErrTriggerFailed = errors.New("analysis trigger failed")

// Request describes one uploaded archive to analyse.
type Request struct {
	// StoragePath is the hash the archive is stored under; the uploaded
	// tree lives at Bucket/StoragePath/.
	StoragePath string `json:"storage_path"`
	// Index is the object key of the uploaded archive index.
	Index    string            `json:"index"`
	Bucket   string            `json:"bucket"`
	FileHash string            `json:"file_hash"`
	Series   []string          `json:"series"`
	Params   map[string]string `json:"params,omitempty"`
}

// Trigger submits analysis jobs.
type Trigger interface {
	Trigger(ctx context.Context, req Request) error
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithParams sets parameters sent with every job. Request.Params take
// precedence.
func WithParams(p map[string]string) Option {
	return func(cl *Client) { cl.params = p }
}

// Client posts jobs as JSON to the pipeline endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	params     map[string]string
	logger     zerolog.Logger
}

func NewClient(url string, timeout time.Duration, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Trigger(ctx context.Context, req Request) error {
	params := make(map[string]string, len(c.params)+len(req.Params))
	for k, v := range c.params {
		params[k] = v
	}
	for k, v := range req.Params {
		params[k] = v
	}
	req.Params = params

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrTriggerFailed, err)
	}

	jobID := uuid.New().String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTriggerFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Job-ID", jobID)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTriggerFailed, err)
	}
	defer resp.Body.Close()

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d: %s", ErrTriggerFailed, resp.StatusCode, body)
	}

	c.logger.Info().
		Str("job_id", jobID).
		Str("file_hash", req.FileHash).
		Int("series", len(req.Series)).
		Dur("latency", time.Since(start)).
		Msg("analysis triggered")
	return nil
}

// Noop logs jobs instead of submitting them. It is used when no pipeline
// endpoint is configured.
type Noop struct {
	Logger zerolog.Logger
}

func (n Noop) Trigger(_ context.Context, req Request) error {
	n.Logger.Warn().
		Str("file_hash", req.FileHash).
		Str("storage_path", req.StoragePath).
		Msg("analysis endpoint not configured, job not submitted")
	return nil
}
