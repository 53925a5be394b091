// Package graph is a minimal client for the Instagram Graph API content
// publishing flow: create a REELS container, poll its processing status,
// publish it.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reelcron/reelcron/pkg/logger"
)

// DefaultBaseURL is the versioned Graph API endpoint.
const DefaultBaseURL = "https://graph.instagram.com/v21.0"

// Container processing states reported in status_code.
const (
	StatusFinished   = "FINISHED"
	StatusInProgress = "IN_PROGRESS"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
	StatusPublished  = "PUBLISHED"
)

const maxBody = 1 << 20

// Container describes the media to publish.
type Container struct {
	VideoURL   string
	Caption    string
	CoverURL   string
	LocationID string
}

// Status is the processing state of a container.
type Status struct {
	Code string `json:"status_code"`
	// Detail is the provider's free-form status text.
	Detail string `json:"status"`
}

// Client talks to the Graph API on behalf of one business account.
type Client struct {
	baseURL   string
	token     string
	accountID string
	http      *http.Client
	retry     RetryConfig
	log       logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the retry policy of idempotent requests.
func WithRetry(r RetryConfig) Option {
	return func(c *Client) { c.retry = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for the given access token and business
// account id.
func NewClient(token, accountID string, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		token:     token,
		accountID: accountID,
		http:      &http.Client{Timeout: 60 * time.Second},
		retry:     DefaultRetryConfig(),
		log:       logger.NewNopLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type idResponse struct {
	ID string `json:"id"`
}

type errorEnvelope struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func decodeAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		e.Message = env.Error.Message
		e.Type = env.Error.Type
		e.Code = env.Error.Code
		e.Subcode = env.Error.ErrorSubcode
		e.Transient = env.Error.IsTransient
		e.TraceID = env.Error.FBTraceID
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// do sends the request and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	form.Set("access_token", c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// CreateContainer creates a REELS media container and returns its id.
func (c *Client) CreateContainer(ctx context.Context, m Container) (string, error) {
	form := url.Values{}
	form.Set("media_type", "REELS")
	form.Set("video_url", m.VideoURL)
	form.Set("caption", m.Caption)
	if m.CoverURL != "" {
		form.Set("cover_url", m.CoverURL)
	}
	if m.LocationID != "" {
		form.Set("location_id", m.LocationID)
	}

	var out idResponse
	err := c.retry.retry(ctx, func() error {
		return c.postForm(ctx, "/"+url.PathEscape(c.accountID)+"/media", form, &out)
	})
	if err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create media container: %w", ErrNoID)
	}
	c.log.Info("Created media container: %s", out.ID)
	return out.ID, nil
}

// ContainerStatus returns the processing status of a container.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (Status, error) {
	q := url.Values{}
	q.Set("fields", "status_code,status")
	q.Set("access_token", c.token)
	u := c.baseURL + "/" + url.PathEscape(containerID) + "?" + q.Encode()

	var st Status
	err := c.retry.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		return c.do(req, &st)
	})
	if err != nil {
		return Status{}, fmt.Errorf("check media status: %w", err)
	}
	return st, nil
}

// Publish publishes a processed container and returns the media id. It is
// never retried: a retry after a lost response could post twice.
func (c *Client) Publish(ctx context.Context, containerID string) (string, error) {
	form := url.Values{}
	form.Set("creation_id", containerID)

	c.log.Info("Publishing media container %s...", containerID)
	var out idResponse
	if err := c.postForm(ctx, "/"+url.PathEscape(c.accountID)+"/media_publish", form, &out); err != nil {
		return "", fmt.Errorf("publish media: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("publish media: %w", ErrNoID)
	}
	c.log.Info("Published reel with ID: %s", out.ID)
	return out.ID, nil
}
