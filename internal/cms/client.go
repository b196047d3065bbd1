// Package cms is a read-only client for the hosted headless CMS that serves
// portal content. It only ever queries; all writes happen in the CMS itself.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable indicates the CMS could not be reached or answered with an
// unexpected status.
var ErrUnavailable = errors.New("cms unavailable")

// Client queries the CMS over its JSON API.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// Option customizes the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpc = c
		}
	}
}

// New builds a client for the CMS at baseURL. token is sent as a bearer
// credential on every query.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("cms base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("cms base url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GeneralCopy is the shared copy block rendered above the updates feed.
type GeneralCopy struct {
	Name      string `json:"name"`
	Txt1      string `json:"txt1"`
	Txt2      string `json:"txt2"`
	Txt1Color string `json:"txt1Color,omitempty"`
	Accent    string `json:"accent,omitempty"`
}

// DayEntry is one dated update in the feed.
type DayEntry struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Day   int    `json:"day"`
	Text  string `json:"text"`
}

// UpdatesDocument is the typed shape of the portal updates content.
type UpdatesDocument struct {
	GeneralCopy GeneralCopy `json:"generalCopy"`
	Days        []DayEntry  `json:"days"`
}

// Updates fetches the updates document.
func (c *Client) Updates(ctx context.Context) (*UpdatesDocument, error) {
	var doc UpdatesDocument
	if err := c.query(ctx, "/content/updates", &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) query(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
