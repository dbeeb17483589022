// Package feed fetches syndication documents (RSS, Atom, JSON Feed) and turns their
// items into raw postings.
package feed

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	apperrors "github.com/spigell/job-radar/internal/errors"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/utils"
)

const (
	acceptEncoding   = "gzip, br"
	defaultUserAgent = "job-radar/1.0 (+https://github.com/spigell/job-radar)"
	defaultTimeout   = 30 * time.Second
	maxBodySize      = 10 << 20

	// UnknownTitle replaces a missing item title.
	UnknownTitle = "Unknown Role"
)

type Client struct {
	HTTPClient *http.Client
	UserAgent  string

	logger *zap.Logger
}

func New(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		UserAgent:  defaultUserAgent,
		logger:     logger,
	}
}

// Fetch downloads and parses the feed behind src. The returned sequence yields the
// feed items in document order with whitespace-normalized text fields. Any network,
// status or parse error is reported as FeedUnavailable; nothing is retried.
func (c *Client) Fetch(ctx context.Context, src Source) (iter.Seq[jobs.RawPosting], error) {
	body, err := c.download(ctx, src)
	if err != nil {
		return nil, apperrors.FeedUnavailable(fmt.Sprintf("fetch %s", src.Label), err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.FeedUnavailable(fmt.Sprintf("parse %s", src.Label), err)
	}

	c.logger.Debug("feed parsed",
		zap.String("source", src.Label),
		zap.String("feed_type", parsed.FeedType),
		zap.Int("items", len(parsed.Items)),
	)

	return func(yield func(jobs.RawPosting) bool) {
		for _, item := range parsed.Items {
			if item == nil {
				continue
			}
			if !yield(toRawPosting(src.Label, item)) {
				return
			}
		}
	}, nil
}

func toRawPosting(source string, item *gofeed.Item) jobs.RawPosting {
	title := utils.CleanText(item.Title)
	if title == "" {
		title = UnknownTitle
	}

	content := utils.CleanText(item.Description)
	if content == "" {
		content = utils.CleanText(item.Content)
	}

	return jobs.RawPosting{
		SourceID:   source,
		Title:      title,
		Link:       utils.CleanText(item.Link),
		RawContent: content,
	}
}

func (c *Client) download(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}

	userAgent := c.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8")

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(io.LimitReader(body, maxBodySize))
}

// decodeBody wraps the response body in the decoder its Content-Encoding needs.
// Closing the result releases the decoder, not the response body.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
