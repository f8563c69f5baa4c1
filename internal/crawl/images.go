package crawl

// ImageRef is one discovered image. Identity is the canonical URL; duplicates
// across pages in a single crawl collapse to one entry.
type ImageRef struct {
	URL     string `json:"url"`
	Alt     string `json:"alt"`
	Context string `json:"context"`
	IsLogo  bool   `json:"is_logo"`
}

// MergeImages folds found into existing, deduplicating by canonical URL.
// On collision the first-seen alt text and context win and the logo flag is
// OR'd. Output order is insertion order of first appearance.
func MergeImages(existing, found []ImageRef) []ImageRef {
	index := make(map[string]int, len(existing))
	out := make([]ImageRef, len(existing))
	copy(out, existing)
	for i, img := range out {
		index[img.URL] = i
	}
	for _, img := range found {
		if i, ok := index[img.URL]; ok {
			if img.IsLogo {
				out[i].IsLogo = true
			}
			continue
		}
		index[img.URL] = len(out)
		out = append(out, img)
	}
	return out
}
