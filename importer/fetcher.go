package importer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/breakingdawnisback/Job-Importer/errors"
)

// Posting is a single job listing parsed out of a fetched feed.
type Posting struct {
	SourceJobID string
	Title       string
	URL         string
	Company     string
	Location    string
	Description string
	PublishedAt *time.Time

	// ParseError is set when the entry was present in the feed but could
	// not be turned into a usable posting. Such postings are counted as
	// failed without aborting the session.
	ParseError string
}

// Fetcher acquires the postings for a feed URL. Implementations must return
// an error only for infrastructure failures (unreachable feed, unparseable
// document); individual bad entries are reported per-posting.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]Posting, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FeedFetcher downloads and parses RSS/Atom job feeds.
type FeedFetcher struct {
	client       HTTPClient
	maxBodyBytes int64
}

// NewFeedFetcher creates a FeedFetcher with the given HTTP client and body
// size cap.
func NewFeedFetcher(client HTTPClient, maxBodyBytes int64) *FeedFetcher {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 5 * 1024 * 1024
	}
	return &FeedFetcher{client: client, maxBodyBytes: maxBodyBytes}
}

// Fetch downloads the feed document and parses it into postings.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) ([]Posting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", "JobImporter/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "http get")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, errors.Wrap(err, "parse feed")
	}

	postings := make([]Posting, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		postings = append(postings, itemToPosting(item))
	}
	return postings, nil
}

// itemToPosting maps a feed entry to a posting. Entries with neither title
// nor link carry a ParseError instead of aborting the whole session.
func itemToPosting(item *gofeed.Item) Posting {
	p := Posting{
		SourceJobID: itemGUID(item),
		Title:       item.Title,
		URL:         item.Link,
		Description: item.Description,
		PublishedAt: item.PublishedParsed,
	}
	if item.Author != nil {
		p.Company = item.Author.Name
	}
	if loc, ok := item.Custom["location"]; ok {
		p.Location = loc
	}
	if item.Title == "" && item.Link == "" {
		p.ParseError = "entry has neither title nor link"
	}
	return p
}

// itemGUID returns the stable identifier for a feed entry. Entries without
// a GUID fall back to a hash of title and link so re-imports still
// deduplicate.
func itemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}
