package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestCrawler(client *http.Client, opts ...CrawlerOption) *Crawler {
	opts = append([]CrawlerOption{withSkipURLValidation(), WithMinCrawlDelay(0)}, opts...)
	return NewCrawler(client, opts...)
}

func siteHandler(pages map[string]string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	})
}

func TestCrawlVisitsLinkedPagesOnce(t *testing.T) {
	srv := httptest.NewServer(siteHandler(map[string]string{
		"/": `<html><body>
			<a href="/a">A</a>
			<a href="/b">B</a>
			<a href="/">Self</a>
			<a href="https://elsewhere.example/c">External</a>
			</body></html>`,
		"/a": `<html><body><a href="/">Home</a><p>Page A</p></body></html>`,
		"/b": `<html><body><p>Page B</p></body></html>`,
	}))
	defer srv.Close()

	c := newTestCrawler(srv.Client())
	result, err := c.Crawl(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if len(result.Pages) != 3 {
		t.Fatalf("expected exactly 3 pages, got %d", len(result.Pages))
	}

	seen := make(map[string]bool)
	seedOrigin := mustParse(t, srv.URL)
	for _, page := range result.Pages {
		if seen[page.URL] {
			t.Errorf("duplicate canonical URL in result: %s", page.URL)
		}
		seen[page.URL] = true

		parsed, parseErr := url.Parse(page.URL)
		if parseErr != nil {
			t.Fatalf("result page has unparsable URL %q", page.URL)
		}
		if !sameOrigin(parsed, seedOrigin) {
			t.Errorf("page %s escaped the seed origin", page.URL)
		}
	}
}

func TestCrawlHonorsPageCap(t *testing.T) {
	pages := map[string]string{
		"/":  `<html><body><a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a><a href="/p4">4</a></body></html>`,
		"/p1": `<html><body>one</body></html>`,
		"/p2": `<html><body>two</body></html>`,
		"/p3": `<html><body>three</body></html>`,
		"/p4": `<html><body>four</body></html>`,
	}
	srv := httptest.NewServer(siteHandler(pages))
	defer srv.Close()

	c := newTestCrawler(srv.Client())
	result, err := c.Crawl(context.Background(), srv.URL, 2)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("expected page cap of 2, got %d pages", len(result.Pages))
	}
}

func TestCrawlDropsFailedPagesAndContinues(t *testing.T) {
	srv := httptest.NewServer(siteHandler(map[string]string{
		"/":  `<html><body><a href="/missing">Gone</a><a href="/a">A</a></body></html>`,
		"/a": `<html><body><p>still here</p></body></html>`,
	}))
	defer srv.Close()

	c := newTestCrawler(srv.Client())
	result, err := c.Crawl(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("a 404 must never be fatal to the crawl: %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages (seed + /a), got %d", len(result.Pages))
	}
}

func TestCrawlRespectsRobotsDisallow(t *testing.T) {
	pages := map[string]string{
		"/":        `<html><body><a href="/private/x">P</a><a href="/a">A</a></body></html>`,
		"/private/x": `<html><body>secret</body></html>`,
		"/a":       `<html><body>open</body></html>`,
	}
	mux := http.NewServeMux()
	mux.Handle("/", siteHandler(pages))
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestCrawler(srv.Client())
	result, err := c.Crawl(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	for _, page := range result.Pages {
		parsed := mustParse(t, page.URL)
		if parsed.Path == "/private/x" {
			t.Fatal("crawled a robots-disallowed path")
		}
	}
	if len(result.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(result.Pages))
	}
}

func TestCrawlRejectsInvalidSeed(t *testing.T) {
	c := newTestCrawler(&http.Client{})
	for _, seed := range []string{"", "javascript:alert(1)", "ftp://example.com"} {
		if _, err := c.Crawl(context.Background(), seed, 10); err == nil {
			t.Errorf("seed %q should be rejected", seed)
		}
	}
}

func TestCrawlMergesImageCatalogAcrossPages(t *testing.T) {
	srv := httptest.NewServer(siteHandler(map[string]string{
		"/": `<html><body>
			<img src="/shared.png" alt="seed alt">
			<a href="/a">A</a>
			</body></html>`,
		"/a": `<html><header><img src="/shared.png" alt="other alt"></header></html>`,
	}))
	defer srv.Close()

	c := newTestCrawler(srv.Client())
	result, err := c.Crawl(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(result.Images) != 1 {
		t.Fatalf("expected shared image deduped to 1 entry, got %d", len(result.Images))
	}
	img := result.Images[0]
	if img.Alt != "seed alt" {
		t.Errorf("first-seen alt should win, got %q", img.Alt)
	}
	if !img.IsLogo {
		t.Error("logo flag from the second occurrence (inside header) should be OR'd in")
	}
}
