package exchange

import (
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

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const apiPrefix = "/api/v1"

// Options configures a Client.
type Options struct {
	BaseURL           string
	APIKey            string
	APISecret         string
	ProxyURL          string
	Timeout           time.Duration // per attempt
	MaxAttempts       int
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	RequestsPerSecond float64
	Logger            *logrus.Entry
}

// Client talks to the exchange REST API. Every request is rate limited and
// retried on transient failures.
type Client struct {
	baseURL     string
	apiKey      string
	apiSecret   string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
	log         *logrus.Entry
	now         func() time.Time
}

// New creates a Client with optional proxy support.
func New(opts Options) *Client {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 15 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if opts.ProxyURL != "" {
		if u, err := url.Parse(opts.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = 500 * time.Millisecond
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = 8 * opts.BackoffMin
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		apiSecret:   opts.APISecret,
		http:        &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		maxAttempts: opts.MaxAttempts,
		backoffMin:  opts.BackoffMin,
		backoffMax:  opts.BackoffMax,
		log:         opts.Logger.WithField("component", "exchange"),
		now:         time.Now,
	}
}

type request struct {
	method string
	path   string
	query  string // already encoded
	form   string // already encoded, POST only
	auth   bool
}

// envelope is the common response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call runs req through the limiter and retry loop and returns the "data"
// member of the response.
func (c *Client) call(ctx context.Context, req request) (json.RawMessage, error) {
	b := &backoff.Backoff{Min: c.backoffMin, Max: c.backoffMax, Factor: 2, Jitter: true}
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
		}

		body, err := c.send(ctx, req)
		if err == nil {
			return decodeEnvelope(body)
		}
		if !c.retryable(ctx, err) {
			return nil, err
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := b.Duration()
		c.log.WithFields(logrus.Fields{
			"method":  req.method,
			"path":    req.path,
			"attempt": attempt,
			"max":     c.maxAttempts,
			"backoff": delay.String(),
		}).WithError(err).Warn("transient exchange error, retrying")

		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, c.maxAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL + apiPrefix + req.path
	if req.query != "" {
		u += "?" + req.query
	}

	var body io.Reader
	if req.form != "" {
		body = strings.NewReader(req.form)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.form != "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.auth {
		httpReq.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", req.method, req.path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}

// retryable: transport failures and the listed HTTP statuses, but never
// once the caller's context is done.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Msg != "" {
		e.Code = env.Code
		e.Message = env.Msg
	}
	return e
}

func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Code: env.Code, Message: env.Msg}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.New("decode response: empty data")
	}
	return env.Data, nil
}

func (c *Client) timestamp() string {
	return fmt.Sprintf("%d", c.now().UnixMilli())
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
