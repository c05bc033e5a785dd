// Package wordpress is a client for the WordPress REST API (wp/v2) used on
// both ends of a migration. Every request goes through a per-host throttle and
// a bounded retry loop.
package wordpress

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const apiPrefix = "/wp-json/wp/v2"

// Credentials identifies one site and the account used to talk to it.
type Credentials struct {
	BaseURL     string
	Username    string
	AppPassword string
}

// Options tunes transport behaviour. Zero values fall back to DefaultOptions.
type Options struct {
	Timeout      time.Duration
	RequestDelay time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	UserAgent    string

	// Throttle lets several clients share one per-host clock. When nil the
	// client creates its own using RequestDelay.
	Throttle *Throttle
}

func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		RequestDelay: 500 * time.Millisecond,
		MaxAttempts:  3,
		RetryBackoff: 1 * time.Second,
		UserAgent:    "wp-content-migrate/1.0",
	}
}

type Client struct {
	baseURL      string
	host         string
	creds        Credentials
	maxAttempts  int
	retryBackoff time.Duration
	throttle     *Throttle
	client       *resty.Client
}

func NewClient(creds Credentials, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil {
		return nil, errors.Errorf("parsing site URL %q: %w", creds.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("site URL %q must be absolute", creds.BaseURL)
	}

	defaults := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = NewThrottle(opts.RequestDelay)
	}

	// resty's own retry stays off; attempts are counted in retryableRequest.
	restyClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json")

	c := &Client{
		baseURL:      base,
		host:         u.Host,
		creds:        creds,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		throttle:     throttle,
		client:       restyClient,
	}
	restyClient.OnBeforeRequest(c.waitForHost)

	return c, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) apiURL(path string) string {
	return c.baseURL + apiPrefix + path
}

// request builds a request bound to ctx carrying the site credentials, if any.
// Callers must only use it for URLs on the client's own host.
func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.client.R().SetContext(ctx)
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.AppPassword)
	}
	return req
}

func (c *Client) anonymousRequest(ctx context.Context) *resty.Request {
	return c.client.R().SetContext(ctx)
}

func (c *Client) sameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, c.host)
}

func (c *Client) waitForHost(_ *resty.Client, req *resty.Request) error {
	host := c.host
	if u, err := url.Parse(req.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	return c.throttle.Wait(req.Context(), host)
}

// retryableRequest runs req until it yields a non-transient outcome or the
// attempt budget is spent. Backoff grows linearly with the attempt number.
func (c *Client) retryableRequest(ctx context.Context, op string, req func() (*resty.Response, error)) (*resty.Response, error) {
	logger := zerolog.Ctx(ctx)
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := req()
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, errors.Errorf("%s cancelled: %w", op, ctx.Err())
			}
			if !isTransient(err) {
				return nil, errors.Errorf("%s: %w", op, err)
			}
			lastErr = err
		case isRetryableStatus(resp.StatusCode()):
			lastErr = newAPIError(resp)
		default:
			return resp, nil
		}

		if attempt == c.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * c.retryBackoff
		logger.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", c.maxAttempts).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("⏳ transient failure, retrying")

		if err := sleepContext(ctx, delay); err != nil {
			return nil, errors.Errorf("%s: %w", op, err)
		}
	}

	return nil, &RetryError{Op: op, Attempts: c.maxAttempts, Last: lastErr}
}
