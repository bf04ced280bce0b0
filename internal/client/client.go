// Package client talks HTTP to the project generation service.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the public Spring Initializr instance.
	DefaultBaseURL = "https://start.spring.io"

	// MetadataMediaType is the versioned metadata format this tool understands.
	MetadataMediaType = "application/vnd.initializr.v2.2+json"
)

// ErrRequestFailed is matched by every non-200 response.
var ErrRequestFailed = errors.New("request failed")

// RequestError carries the diagnostics of a non-200 response.
type RequestError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s returned HTTP %d", ErrRequestFailed, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s returned HTTP %d: %s", ErrRequestFailed, e.URL, e.StatusCode, e.Body)
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// Download is an archive response whose body has not been read yet. The
// caller must close Body.
type Download struct {
	URL           string
	Header        http.Header
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// Client is owned by a single invocation; there is no package level client.
type Client struct {
	http      *http.Client
	userAgent string
	logger    *zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(opts ...Option) *Client {
	nop := zerolog.Nop()
	c := &Client{
		http:      &http.Client{},
		userAgent: "starter",
		logger:    &nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMetadata downloads the metadata document at url.
func (c *Client) FetchMetadata(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url, MetadataMediaType)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata from %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{URL: url, StatusCode: resp.StatusCode}
	}

	c.logger.Debug().Str("url", url).Int("bytes", len(body)).Msg("metadata fetched")
	return body, nil
}

// FetchArchive starts downloading the generated project at url.
func (c *Client) FetchArchive(ctx context.Context, url string) (*Download, error) {
	resp, err := c.get(ctx, url, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, &RequestError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug().
		Str("url", url).
		Int64("content_length", resp.ContentLength).
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("archive response received")
	return &Download{
		URL:           url,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}

func (c *Client) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s failed: %w", url, err)
	}
	return resp, nil
}
