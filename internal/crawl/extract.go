package crawl

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// PageRecord is one successfully fetched page. Immutable after creation.
type PageRecord struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Content     string      `json:"content"`
	Sections    []Section   `json:"sections"`
	Images      []ImageRef  `json:"images"`
}

// DefaultMaxContentRunes bounds a page's extracted text. Truncation is a
// normal degradation, not an error; it caps memory and downstream prompt size.
const DefaultMaxContentRunes = 50000

var (
	whitespaceRe = regexp.MustCompile(`[ \t\r\f]+`)
	newlineRe    = regexp.MustCompile(`\n+`)
	cssURLRe     = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)
)

// ExtractPage converts one rendered page into a structured record: title,
// description, bounded main text, classified sections, and discovered images.
func ExtractPage(data []byte, contentType, pageURL string) PageRecord {
	return extractPage(data, contentType, pageURL, DefaultMaxContentRunes)
}

func extractPage(data []byte, contentType, pageURL string, maxContent int) PageRecord {
	record := PageRecord{URL: pageURL}

	doc, err := parseDocument(data, contentType)
	if err != nil {
		return record
	}

	// Strip non-content nodes before any text extraction.
	doc.Find("script,style,iframe,noscript").Remove()

	record.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if record.Title == "" {
		record.Title = strings.TrimSpace(doc.Find("h1,h2,h3,h4,h5,h6").First().Text())
	}

	record.Description = strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if record.Description == "" {
		record.Description = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}

	record.Content = truncateRunes(collapseWhitespace(doc.Find("body").Text()), maxContent)
	record.Sections = extractSections(doc)

	if base, parseErr := url.Parse(pageURL); parseErr == nil {
		record.Images = extractImages(doc, base)
	}

	return record
}

func parseDocument(data []byte, contentType string) (*goquery.Document, error) {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, err
		}
		decoded = data
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(decoded))
}

func collapseWhitespace(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = newlineRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func truncateRunes(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

func extractSections(doc *goquery.Document) []Section {
	var sections []Section
	doc.Find(`section, div[class*="section"], div[id*="section"]`).Each(func(_ int, sel *goquery.Selection) {
		content := collapseWhitespace(sel.Text())
		kind := classifySection(content, sel.AttrOr("id", ""), sel.AttrOr("class", ""))
		title := strings.TrimSpace(sel.Find("h1,h2,h3").First().Text())
		if title == "" {
			title = string(kind)
		}
		sections = append(sections, Section{Kind: kind, Title: title, Content: content})
	})
	if len(sections) == 0 {
		sections = append(sections, Section{
			Kind:    SectionOther,
			Title:   "Main Content",
			Content: collapseWhitespace(doc.Find("body").Text()),
		})
	}
	return sections
}

func extractImages(doc *goquery.Document, base *url.URL) []ImageRef {
	var images []ImageRef
	seen := make(map[string]bool)

	add := func(raw, alt, context string, isLogo bool) {
		canonical, err := Normalize(raw, base)
		if err != nil || strings.HasPrefix(raw, "data:") {
			return
		}
		if seen[canonical] {
			return
		}
		seen[canonical] = true
		images = append(images, ImageRef{URL: canonical, Alt: alt, Context: context, IsLogo: isLogo})
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		alt := sel.AttrOr("alt", "")
		context := collapseWhitespace(sel.Parent().Text())
		logo := isLikelyLogo(sel)

		src := sel.AttrOr("src", sel.AttrOr("data-src", sel.AttrOr("data-lazy-src", "")))
		if src != "" {
			add(src, alt, context, logo)
		}

		// Responsive source sets: take the first listed candidate.
		srcset := sel.AttrOr("srcset", sel.AttrOr("data-srcset", ""))
		if srcset != "" {
			first, _, _ := strings.Cut(srcset, ",")
			if fields := strings.Fields(strings.TrimSpace(first)); len(fields) > 0 {
				add(fields[0], alt, context, logo)
			}
		}
	})

	doc.Find(`[style*="background"]`).Each(func(_ int, sel *goquery.Selection) {
		style := sel.AttrOr("style", "")
		for _, match := range cssURLRe.FindAllStringSubmatch(style, -1) {
			add(match[1], "", collapseWhitespace(sel.Text()), false)
		}
	})

	return images
}

// isLikelyLogo flags an image whose alt text, class, or URL mentions "logo",
// or which sits inside a page-header container.
func isLikelyLogo(sel *goquery.Selection) bool {
	alt := strings.ToLower(sel.AttrOr("alt", ""))
	class := strings.ToLower(sel.AttrOr("class", ""))
	src := strings.ToLower(sel.AttrOr("src", ""))
	if strings.Contains(alt, "logo") || strings.Contains(class, "logo") || strings.Contains(src, "logo") {
		return true
	}
	return sel.Closest("header").Length() > 0
}

// extractLinks returns every canonicalized outbound hyperlink on the page,
// resolved against the page's own URL. Origin filtering is the caller's job.
func extractLinks(data []byte, contentType, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	doc, err := parseDocument(data, contentType)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		canonical, normErr := Normalize(sel.AttrOr("href", ""), base)
		if normErr != nil {
			return
		}
		if !seen[canonical] {
			seen[canonical] = true
			links = append(links, canonical)
		}
	})
	return links
}
