package citrix

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/3leaps/nsupdates/internal/model"
	"github.com/3leaps/nsupdates/internal/verify"
)

const (
	// DefaultFeedURL is the public NetScaler ADC download announcement feed.
	DefaultFeedURL = "https://www.citrix.com/content/citrix/en_us/downloads/netscaler-adc.rss"

	defaultTimeout = 10 * time.Second
	maxFeedBytes   = 8 << 20
)

// ErrFeedUnavailable wraps every failure to obtain announcement titles.
var ErrFeedUnavailable = errors.New("release feed unavailable")

func UserAgent(version string) string {
	return fmt.Sprintf("check_nsupdates/%s", version)
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// Client reads release announcement titles from the Citrix feed or a local
// snapshot of it.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  UserAgent("dev"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Titles returns the item titles of the feed in feed order (newest first).
func (c *Client) Titles(ctx context.Context, src model.FeedSource) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if src.File != "" {
		data, err = readSnapshot(src)
	} else {
		data, err = c.Fetch(ctx, src.URL)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}

	titles, err := ParseTitles(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	return titles, nil
}

// ParseTitles decodes an RSS or Atom document and returns its item titles.
func ParseTitles(r io.Reader) ([]string, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		titles = append(titles, item.Title)
	}
	return titles, nil
}

// Fetch returns the raw feed document at url, or the public feed when url is empty.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		url = DefaultFeedURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return body, nil
}

func readSnapshot(src model.FeedSource) ([]byte, error) {
	// #nosec G304 -- snapshot path operator supplied
	data, err := os.ReadFile(src.File)
	if err != nil {
		return nil, fmt.Errorf("read feed snapshot: %w", err)
	}
	if src.SignaturePath == "" {
		return data, nil
	}
	if src.PublicKeyPath == "" {
		return nil, errors.New("feed snapshot signature given without a minisign public key")
	}
	if err := verify.VerifyMinisign(data, src.SignaturePath, src.PublicKeyPath); err != nil {
		return nil, fmt.Errorf("verify feed snapshot: %w", err)
	}
	return data, nil
}
