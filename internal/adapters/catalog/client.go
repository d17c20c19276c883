// Package catalog is the HTTP client for the destination book catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/pkg/logger"
	"github.com/okian/bookmatch/pkg/metrics"
)

const (
	defaultRPS        = 5
	defaultMaxRetries = 3
	defaultTimeout    = 15 * time.Second
	defaultBackoff    = time.Second
	userAgent         = "bookmatch/1.0"
)

// ErrCatalogUnavailable wraps transport and server failures.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// searchResponse is the envelope of every search endpoint.
type searchResponse struct {
	Results []model.Candidate `json:"results"`
}

type libraryResponse struct {
	Entries []model.LibraryEntry `json:"entries"`
}

// Client talks to the catalog API. Identical concurrent searches share one
// request.
type Client struct {
	baseURL    string
	token      string
	rps        float64
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	log        logger.Logger
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		rps:        defaultRPS,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logger.Get().Named("catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter = rate.NewLimiter(rate.Limit(c.rps), 1)
	return c
}

// SearchByASIN returns the works with an edition carrying asin.
func (c *Client) SearchByASIN(ctx context.Context, asin string) ([]model.Candidate, error) {
	return c.search(ctx, "asin", "/search/asin/"+url.PathEscape(asin))
}

// SearchByISBN returns the works with an edition carrying isbn.
func (c *Client) SearchByISBN(ctx context.Context, isbn string) ([]model.Candidate, error) {
	return c.search(ctx, "isbn", "/search/isbn/"+url.PathEscape(isbn))
}

// SearchByTitleAuthor runs a free-text search bounded by limit.
func (c *Client) SearchByTitleAuthor(ctx context.Context, title, author, narrator string, limit int) ([]model.Candidate, error) {
	q := url.Values{}
	q.Set("title", title)
	if author != "" {
		q.Set("author", author)
	}
	if narrator != "" {
		q.Set("narrator", narrator)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	res, err := c.search(ctx, "title_author", "/search?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// FetchLibrary returns the user's destination library.
func (c *Client) FetchLibrary(ctx context.Context, userID string) ([]model.LibraryEntry, error) {
	var res libraryResponse
	found, err := c.get(ctx, "library", "/users/"+url.PathEscape(userID)+"/library", &res)
	if err != nil {
		return nil, err
	}
	if !found {
		return []model.LibraryEntry{}, nil
	}
	return res.Entries, nil
}

func (c *Client) search(ctx context.Context, op, path string) ([]model.Candidate, error) {
	// The shared fetch outlives any single caller; each caller still
	// stops waiting when its own ctx ends.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(path, func() (any, error) {
		var res searchResponse
		if _, err := c.get(fetchCtx, op, path, &res); err != nil {
			return nil, err
		}
		return res.Results, nil
	})
	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.Err != nil {
		return nil, r.Err
	}
	results, _ := r.Val.([]model.Candidate)
	if r.Shared {
		results = append([]model.Candidate(nil), results...)
	}
	if results == nil {
		results = []model.Candidate{}
	}
	return results, nil
}

// get fetches path into target, retrying throttled and failed requests
// with exponential backoff. found is false on 404.
func (c *Client) get(ctx context.Context, op, path string, target any) (found bool, err error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		found, retry, err := c.do(ctx, op, path, target)
		if err == nil {
			return found, nil
		}
		if !retry {
			return false, err
		}
		lastErr = err
		c.log.Debug(ctx, "retrying catalog request",
			logger.String("op", op),
			logger.Int("attempt", attempt+1),
			logger.Error(err))
	}
	return false, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, op, path string, target any) (found, retry bool, err error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordCatalogRequest(op, status, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, false, ctx.Err()
		}
		return false, true, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return false, true, fmt.Errorf("%w: unexpected status code: %d", ErrCatalogUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, false, fmt.Errorf("%w: unexpected status code: %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, false, fmt.Errorf("decode %s response: %w", op, err)
	}
	return true, false, nil
}
