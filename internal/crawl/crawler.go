package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bellhop/pkg/logging"
)

const (
	// DefaultMaxPages bounds a crawl when the caller does not supply a cap.
	DefaultMaxPages = 10

	defaultMinCrawlDelay = 200 * time.Millisecond
	maxCrawlDelay        = 10 * time.Second
	defaultPageTimeout   = 30 * time.Second
	maxPageBytes         = 10 << 20 // 10 MB
	maxErrorBodyBytes    = 1 << 20  // 1 MB
)

// ErrInvalidSeedURL marks a crawl rejected before any fetching started.
var ErrInvalidSeedURL = errors.New("invalid seed url")

// PageRenderer renders JavaScript-heavy pages via a headless browser.
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (htmlContent string, err error)
	Close()
}

// Result is the output of one crawl: every fetched page in traversal order
// plus the deduplicated image catalog across all of them.
type Result struct {
	Pages  []PageRecord `json:"pages"`
	Images []ImageRef   `json:"images"`
}

type Crawler struct {
	client            *http.Client
	renderer          PageRenderer
	logger            logging.Logger
	userAgent         string
	minCrawlDelay     time.Duration
	pageTimeout       time.Duration
	maxContentRunes   int
	robotsCache       map[string]*robotsRules
	mu                sync.Mutex
	skipURLValidation bool // for tests that use httptest (localhost)
}

type CrawlerOption func(*Crawler)

func WithLogger(logger logging.Logger) CrawlerOption {
	return func(c *Crawler) { c.logger = logger }
}

func WithRenderer(r PageRenderer) CrawlerOption {
	return func(c *Crawler) { c.renderer = r }
}

func WithMinCrawlDelay(d time.Duration) CrawlerOption {
	return func(c *Crawler) { c.minCrawlDelay = d }
}

func WithPageTimeout(d time.Duration) CrawlerOption {
	return func(c *Crawler) { c.pageTimeout = d }
}

func WithMaxContentRunes(n int) CrawlerOption {
	return func(c *Crawler) { c.maxContentRunes = n }
}

func withSkipURLValidation() CrawlerOption {
	return func(c *Crawler) { c.skipURLValidation = true }
}

func NewCrawler(client *http.Client, opts ...CrawlerOption) *Crawler {
	if client == nil {
		client = &http.Client{
			Timeout:   defaultPageTimeout,
			Transport: NewSSRFSafeTransport(),
		}
	}
	c := &Crawler{
		client:          client,
		userAgent:       "BellhopBot/1.0",
		minCrawlDelay:   defaultMinCrawlDelay,
		pageTimeout:     defaultPageTimeout,
		maxContentRunes: DefaultMaxContentRunes,
		robotsCache:     make(map[string]*robotsRules),
	}
	for _, opt := range opts {
		opt(c)
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("stopped after 5 redirects")
		}
		if !c.skipURLValidation {
			if _, err := validateCrawlURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
		}
		return nil
	}
	return c
}

func (c *Crawler) Close() {
	if c.renderer != nil {
		c.renderer.Close()
	}
}

// Crawl walks a site breadth-first from seedURL, same-origin only, one page
// at a time. Per-page failures are logged and dropped; the walk continues
// with the remaining frontier. It stops when the frontier empties or maxPages
// records have been produced. The same canonical URL is never visited twice.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxPages int) (*Result, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	seed, err := Normalize(seedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSeedURL, seedURL, err)
	}
	seedParsed, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSeedURL, seedURL, err)
	}
	if !c.skipURLValidation {
		if _, err := validateCrawlURL(seed); err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSeedURL, seedURL, err)
		}
	}

	crawlStart := time.Now()
	defer func() {
		crawlDuration.WithLabelValues(seedParsed.Host).Observe(time.Since(crawlStart).Seconds())
	}()

	rules := c.getRobotsRules(ctx, seedParsed)
	limiter := rate.NewLimiter(rate.Every(rules.delay), 1)

	frontier := []string{seed}
	visited := make(map[string]bool)
	result := &Result{}

	for len(frontier) > 0 && len(result.Pages) < maxPages {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		current := frontier[0]
		frontier = frontier[1:]

		if visited[current] {
			continue
		}
		visited[current] = true

		if !c.isAllowedByRobots(rules, current) {
			crawlPagesTotal.WithLabelValues("disallowed").Inc()
			if c.logger != nil {
				c.logger.WithField("url", current).Info("Skipping page disallowed by robots.txt")
			}
			continue
		}
		if !c.skipURLValidation {
			if _, valErr := validateCrawlURL(current); valErr != nil {
				crawlPagesTotal.WithLabelValues("blocked").Inc()
				if c.logger != nil {
					c.logger.WithField("url", current).WithField("error", valErr.Error()).Warn("URL blocked by SSRF check, skipping")
				}
				continue
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		pageCtx, cancel := context.WithTimeout(ctx, c.pageTimeout)
		data, contentType, fetchErr := c.fetchPage(pageCtx, current)
		cancel()
		if fetchErr != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			crawlPagesTotal.WithLabelValues("failed").Inc()
			if c.logger != nil {
				c.logger.WithField("url", current).WithError(fetchErr).Warn("Page fetch failed, skipping")
			}
			continue
		}

		record := extractPage(data, contentType, current, c.maxContentRunes)
		crawlPagesTotal.WithLabelValues("fetched").Inc()
		result.Pages = append(result.Pages, record)
		result.Images = MergeImages(result.Images, record.Images)

		links := extractLinks(data, contentType, current)
		linksDiscoveredTotal.Add(float64(len(links)))
		for _, link := range links {
			parsed, parseErr := url.Parse(link)
			if parseErr != nil || !sameOrigin(parsed, seedParsed) {
				continue
			}
			if !visited[link] {
				frontier = append(frontier, link)
			}
		}
	}

	if c.logger != nil {
		c.logger.
			WithField("seed", seed).
			WithField("pages", len(result.Pages)).
			WithField("images", len(result.Images)).
			Info("Crawl finished")
	}
	return result, nil
}

// fetchPage retrieves one page, transparently retrying transient failures and
// falling back to the headless renderer when the static HTML looks like an
// empty SPA shell.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) ([]byte, string, error) {
	data, contentType, err := c.fetchStatic(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	if c.renderer != nil && needsRendering(data) {
		if c.logger != nil {
			c.logger.WithField("url", pageURL).Info("SPA detected, retrying with renderer")
		}
		renderStart := time.Now()
		rendered, renderErr := c.renderer.Render(ctx, pageURL)
		renderDuration.Observe(time.Since(renderStart).Seconds())
		if renderErr != nil {
			renderPagesTotal.WithLabelValues("error").Inc()
			if c.logger != nil {
				c.logger.WithField("url", pageURL).WithError(renderErr).Warn("Rendered fetch failed, falling back to static HTML")
			}
			return data, contentType, nil
		}
		renderPagesTotal.WithLabelValues("success").Inc()
		return []byte(rendered), "text/html; charset=utf-8", nil
	}

	return data, contentType, nil
}

func (c *Crawler) fetchStatic(ctx context.Context, pageURL string) ([]byte, string, error) {
	resp, err := c.doWithRetry(ctx, pageURL)
	if err != nil {
		return nil, "", fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, "", fmt.Errorf("fetch page %s: unexpected status %s: %s", pageURL, resp.Status, strings.TrimSpace(string(body)))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml") {
		return nil, "", fmt.Errorf("unsupported content type %q for %s", contentType, pageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read page %s: %w", pageURL, err)
	}
	return data, contentType, nil
}

// fetchRaw is the plain body fetch used for robots.txt.
func (c *Crawler) fetchRaw(ctx context.Context, target string) ([]byte, error) {
	resp, err := c.doWithRetry(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

const maxRetries = 3

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// doWithRetry executes a GET with exponential backoff on transient errors.
// The previous response is discarded before each retry.
func (c *Crawler) doWithRetry(ctx context.Context, target string) (*http.Response, error) {
	var resp *http.Response
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			if resp != nil {
				if ra := resp.Header.Get("Retry-After"); ra != "" {
					if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 && secs <= 120 {
						backoff = time.Duration(secs) * time.Second
					}
				}
				resp.Body.Close()
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		resp, err = c.client.Do(req)
		if err != nil {
			if !isRetryableError(err) {
				return nil, err
			}
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
