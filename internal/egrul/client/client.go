// Package client talks to the EGRUL registry (egrul.nalog.ru).
//
// It issues the raw token, search-result and vyp-* calls and maps transport and
// protocol failures onto registryerr categories. It holds no business logic and does
// not retry; every call is a single blocking attempt bounded by the configured timeout.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark-rom/egrul-bot/internal/egrul/metrics"
	"github.com/mark-rom/egrul-bot/internal/egrul/models"
	"github.com/mark-rom/egrul-bot/internal/egrul/registryerr"
	"github.com/mark-rom/egrul-bot/internal/egrul/tracer"
)

const (
	DefaultBaseURL   = "https://egrul.nalog.ru/"
	DefaultUserAgent = "python-requests/2.27.1"
	DefaultTimeout   = 10 * time.Second

	searchResultPath = "search-result/"
	downloadPath     = "vyp-download/"

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20
)

// Phase selects the vyp-* endpoint of the extraction handshake.
type Phase string

const (
	PhaseRequest Phase = "vyp-request"
	PhaseStatus  Phase = "vyp-status"
)

// Endpoint labels for metrics.
const (
	endpointToken  = "token"
	endpointSearch = "search-result"
	endpointHealth = "root"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures the registry client.
type Config struct {
	BaseURL   string
	Host      string // Host header; derived from BaseURL when empty
	UserAgent string
	Timeout   time.Duration
}

// Client is safe for concurrent use; it keeps no per-call state.
type Client struct {
	baseURL   string
	host      string
	userAgent string
	http      HTTPDoer
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

// WithMetrics enables call metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTracer wraps every call in a span.
func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New creates a registry client. Zero config values fall back to the defaults.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Host == "" {
		if u, err := url.Parse(cfg.BaseURL); err == nil {
			cfg.Host = u.Host
		}
	}

	c := &Client{
		baseURL:   cfg.BaseURL,
		host:      cfg.Host,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// tokenRequest is the search form the registry expects. Field order is part of the contract.
type tokenRequest struct {
	CaptchaToken string `json:"vyp3CaptchaToken"`
	Page         string `json:"page"`
	Query        string `json:"query"`
	Region       string `json:"region"`
}

type tokenResponse struct {
	Token           string `json:"t"`
	CaptchaRequired bool   `json:"captchaRequired"`
}

type searchResponse struct {
	Rows *[]models.RegistryRecord `json:"rows"`
}

// AcquireToken submits the search form for id and returns the search token.
func (c *Client) AcquireToken(ctx context.Context, id models.Identifier) (_ models.SearchToken, err error) {
	const op = "acquire_token"
	ctx, span := c.tracer.Start(ctx, tracer.SpanAcquireToken, tracer.String(tracer.AttrIdentifier, tracer.HashIdentifier(id.String())))
	defer func() { span.End(err) }()

	body, err := json.Marshal(tokenRequest{Query: id.String()})
	if err != nil {
		return "", registryerr.New(registryerr.CategoryInternal, op, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", registryerr.New(registryerr.CategoryInternal, op, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "Close")
	req.Close = true
	if c.host != "" {
		req.Host = c.host
	}

	status, respBody, err := c.do(req, op, endpointToken)
	if err != nil {
		return "", err
	}
	span.SetAttributes(tracer.Int(tracer.AttrHTTPStatus, status))
	if status != http.StatusOK {
		return "", registryerr.New(registryerr.CategoryRejected, op, fmt.Sprintf("unexpected status code: %d", status), nil)
	}

	var resp tokenResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", registryerr.New(registryerr.CategoryMalformedResponse, op, "failed to parse response", err)
	}
	if resp.CaptchaRequired {
		return "", registryerr.New(registryerr.CategoryRejected, op, "registry demands a captcha", nil)
	}
	if resp.Token == "" {
		return "", registryerr.New(registryerr.CategoryMalformedResponse, op, `response has no "t" key`, nil)
	}
	return models.SearchToken(resp.Token), nil
}

// FetchRecord loads the first search result for token.
// An empty result set is a user error: the number matched nothing.
func (c *Client) FetchRecord(ctx context.Context, token models.SearchToken) (_ *models.RegistryRecord, err error) {
	const op = "fetch_record"
	ctx, span := c.tracer.Start(ctx, tracer.SpanFetchRecord)
	defer func() { span.End(err) }()

	respBody, err := c.get(ctx, op, endpointSearch, searchResultPath+url.PathEscape(string(token)))
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, registryerr.New(registryerr.CategoryMalformedResponse, op, "failed to parse response", err)
	}
	if resp.Rows == nil {
		return nil, registryerr.New(registryerr.CategoryMalformedResponse, op, `response has no "rows" key`, nil)
	}
	if len(*resp.Rows) == 0 {
		return nil, registryerr.User(registryerr.CategoryNoMatch, op, registryerr.MsgNoMatch)
	}

	record := (*resp.Rows)[0]
	return &record, nil
}

// RequestExtraction calls one phase of the extraction handshake and returns the raw payload.
// Interpreting the payload (token rotation, readiness) is up to the caller.
func (c *Client) RequestExtraction(ctx context.Context, token models.ExtractionToken, phase Phase) (_ *models.ExtractionPayload, err error) {
	op := "extraction_" + strings.TrimPrefix(string(phase), "vyp-")
	ctx, span := c.tracer.Start(ctx, tracer.SpanExtractionCall, tracer.String(tracer.AttrPhase, string(phase)))
	defer func() { span.End(err) }()

	if phase != PhaseRequest && phase != PhaseStatus {
		return nil, registryerr.New(registryerr.CategoryInternal, op, fmt.Sprintf("unknown extraction phase %q", phase), nil)
	}

	respBody, err := c.get(ctx, op, string(phase), string(phase)+"/"+url.PathEscape(string(token)))
	if err != nil {
		return nil, err
	}

	var payload models.ExtractionPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, registryerr.New(registryerr.CategoryMalformedResponse, op, "failed to parse response", err)
	}
	return &payload, nil
}

// PollExtractionStatus checks whether the document for token is ready.
func (c *Client) PollExtractionStatus(ctx context.Context, token models.ExtractionToken) (*models.ExtractionPayload, error) {
	return c.RequestExtraction(ctx, token, PhaseStatus)
}

// DownloadReference builds the document URL for token. Nothing is fetched.
func (c *Client) DownloadReference(token models.ExtractionToken) models.DownloadReference {
	return models.DownloadReference(c.baseURL + downloadPath + url.PathEscape(string(token)))
}

// Health checks that the registry front page answers.
func (c *Client) Health(ctx context.Context) (err error) {
	const op = "health"
	ctx, span := c.tracer.Start(ctx, tracer.SpanHealth)
	defer func() { span.End(err) }()

	_, err = c.get(ctx, op, endpointHealth, "")
	return err
}

// get performs a GET against path relative to the base URL and requires a 200.
func (c *Client) get(ctx context.Context, op, endpoint, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, registryerr.New(registryerr.CategoryInternal, op, "failed to create request", err)
	}
	if c.host != "" {
		req.Host = c.host
	}

	status, body, err := c.do(req, op, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, registryerr.New(registryerr.CategoryRejected, op, fmt.Sprintf("unexpected status code: %d", status), nil)
	}
	return body, nil
}

// do executes req and reads the body. Only transport failures are returned as errors;
// status handling is left to the caller.
func (c *Client) do(req *http.Request, op, endpoint string) (int, []byte, error) {
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		category, outcome := registryerr.CategoryUnreachable, "unreachable"
		if isTimeout(req.Context(), err) {
			category, outcome = registryerr.CategoryTimeout, "timeout"
		}
		c.metrics.ObserveCall(endpoint, outcome, time.Since(start).Seconds())
		return 0, nil, registryerr.New(category, op, fmt.Sprintf("failed to execute request to %s", req.URL.Redacted()), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.ObserveCall(endpoint, "unreachable", time.Since(start).Seconds())
		return 0, nil, registryerr.New(registryerr.CategoryUnreachable, op, "failed to read response body", err)
	}

	outcome := "ok"
	if resp.StatusCode != http.StatusOK {
		outcome = "rejected"
	}
	c.metrics.ObserveCall(endpoint, outcome, time.Since(start).Seconds())
	return resp.StatusCode, body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
