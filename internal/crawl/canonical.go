package crawl

import (
	"errors"
	"net/url"
	"strings"
)

var (
	errEmptyURL          = errors.New("empty url")
	errFragmentOnly      = errors.New("fragment-only url")
	errUnsupportedScheme = errors.New("unsupported scheme")
)

// Normalize turns a raw hyperlink into its canonical absolute form: scheme
// http or https, fragment stripped, protocol-relative and relative forms
// resolved against base. Two URLs name the same page iff their canonical
// forms are equal. Normalizing an already-canonical URL is a no-op.
func Normalize(raw string, base *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyURL
	}
	if strings.HasPrefix(raw, "#") {
		return "", errFragmentOnly
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return "", errUnsupportedScheme
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !parsed.IsAbs() {
		if base == nil {
			return "", errors.New("relative url without base")
		}
		parsed = base.ResolveReference(parsed)
	}
	// Scheme and host are case-insensitive; lowercase both so link casing
	// cannot make one page count twice against the visited set.
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	switch parsed.Scheme {
	case "http", "https":
	default:
		return "", errUnsupportedScheme
	}
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String(), nil
}

// origin returns the scheme://host prefix used for the same-origin filter.
func origin(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

func sameOrigin(a, b *url.URL) bool {
	return origin(a) == origin(b)
}
