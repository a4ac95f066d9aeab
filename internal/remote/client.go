// Package remote persists map documents through the fleet control service's
// editor-data endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/starford/mapforge/internal/apperr"
)

const (
	loadPath   = "/map/editor/load"
	uploadPath = "/map/model/%s/editor-data/upload"

	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	defaultVersion  = "1.0"

	// defaultMaxResponse caps response bodies at the size accepted for
	// uploads and imports.
	defaultMaxResponse = 10 << 20
)

// ErrRejected is returned when the service answers with a non-success
// envelope code.
var ErrRejected = errors.New("remote: request rejected")

// ErrResponseTooLarge is returned when a response body exceeds the configured
// maximum.
var ErrResponseTooLarge = fmt.Errorf("remote: response too large: %w", apperr.ErrInvalid)

// Client talks to the map service. It satisfies mapdoc.Persistence.
type Client struct {
	base     string
	token    string
	http     *http.Client
	attempts uint
	delay    time.Duration
	maxBody  int64
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithMaxResponseSize caps the bytes read from a response body.
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q: %w", baseURL, apperr.ErrInvalid)
	}
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: defaultAttempts,
		delay:    defaultDelay,
		maxBody:  defaultMaxResponse,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// envelope is the service's standard response wrapper.
type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Load fetches the editor data of mapID. The body is returned as sent; it
// may still be wrapped in a response envelope.
func (c *Client) Load(ctx context.Context, mapID string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"mapId": mapID})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, "load "+mapID, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+loadPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remote: load %s: %w", mapID, err)
	}
	return data, nil
}

// Save uploads data as the multipart file map_<version>.json.
func (c *Client) Save(ctx context.Context, mapID string, data []byte) error {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", FileName(data))
	if err != nil {
		return fmt.Errorf("remote: save %s: %w", mapID, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("remote: save %s: %w", mapID, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("remote: save %s: %w", mapID, err)
	}
	payload := form.Bytes()

	endpoint := c.base + fmt.Sprintf(uploadPath, url.PathEscape(mapID))
	resp, err := c.do(ctx, "save "+mapID, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("remote: save %s: %w", mapID, err)
	}
	if err := checkEnvelope(resp); err != nil {
		return fmt.Errorf("remote: save %s: %w", mapID, err)
	}
	return nil
}

// FileName returns the upload file name for a serialized document.
func FileName(data []byte) string {
	var head struct {
		MapInfo struct {
			Version string `json:"version"`
		} `json:"mapInfo"`
	}
	version := defaultVersion
	if json.Unmarshal(data, &head) == nil && head.MapInfo.Version != "" {
		version = head.MapInfo.Version
	}
	return "map_" + version + ".json"
}

// checkEnvelope fails when body is an envelope carrying a non-200 code.
// Bodies that are not envelopes are accepted.
func checkEnvelope(body []byte) error {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &env) != nil || env.Code == 0 {
		return nil
	}
	switch env.Code {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", env.Msg, apperr.ErrNotFound)
	}
	return fmt.Errorf("%w: code %d: %s", ErrRejected, env.Code, env.Msg)
}

// statusError describes a non-2xx HTTP response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// do sends the request built by newReq, retrying transport failures and 5xx
// responses. 4xx responses fail immediately.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	return retry.DoWithData(func() ([]byte, error) {
		req, err := newReq()
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > c.maxBody {
			return nil, retry.Unrecoverable(fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, c.maxBody))
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		se := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(data))}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, retry.Unrecoverable(fmt.Errorf("%w: %w", se, apperr.ErrNotFound))
		case resp.StatusCode < 500:
			return nil, retry.Unrecoverable(se)
		}
		return nil, se
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("remote: retrying",
				slog.String("op", op),
				slog.Int("attempt", int(attempt)+1),
				slog.String("error", err.Error()),
			)
		}),
	)
}
