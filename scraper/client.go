// Package scraper extracts tournament listings, standings and deck lists from the
// Limitless TCG site. Selectors live next to the code that uses them and are pinned by the
// HTML fixtures under testdata/.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"tcg-companion/logging"
	"tcg-companion/utils"
)

// PageArchiver receives every raw page the client downloads. utils.LocalArchiver and
// utils.R2Archiver satisfy it.
type PageArchiver interface {
	Archive(ctx context.Context, key string, body []byte, contentType string) error
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

type Client struct {
	baseURL    *url.URL
	pageSize   int
	httpClient *http.Client
	archiver   PageArchiver
	runID      string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithArchiver stores each fetched page under "limitless/{runID}/...".
func WithArchiver(a PageArchiver, runID string) Option {
	return func(c *Client) {
		c.archiver = a
		c.runID = runID
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid limitless base url %q", baseURL)
	}
	c := &Client{
		baseURL:    u,
		pageSize:   100,
		httpClient: utils.HTTPClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the site root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// PageSize is the "show" value sent with listing requests.
func (c *Client) PageSize() int {
	return c.pageSize
}

// absolute resolves href against the site root. Empty input stays empty.
func (c *Client) absolute(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *Client) fetchDocument(ctx context.Context, rawURL, archiveName string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: rawURL, Body: utils.ReadErrorBody(resp.Body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	if c.archiver != nil && archiveName != "" {
		key := path.Join("limitless", c.runID, archiveName+".html")
		if err := c.archiver.Archive(ctx, key, body, "text/html"); err != nil {
			// archive problems never fail a sync
			log := logging.For("scraper")
			log.Warn().Err(err).Str("key", key).Msg("⚠️ [ARCHIVE] failed to store page")
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// numericSegment returns the last path segment of rawURL made only of digits.
func numericSegment(rawURL string) string {
	segments := pathSegments(rawURL)
	for i := len(segments) - 1; i >= 0; i-- {
		if isDigits(segments[i]) {
			return segments[i]
		}
	}
	return ""
}

// lastSegment returns the final non-empty path segment of rawURL.
func lastSegment(rawURL string) string {
	segments := pathSegments(rawURL)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func pathSegments(rawURL string) []string {
	if rawURL == "" {
		return nil
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// collapse trims s and folds inner whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
