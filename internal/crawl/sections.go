package crawl

import "strings"

// SectionKind is the closed set of content categories a page block can be
// classified into. New kinds are added here, not at call sites.
type SectionKind string

const (
	SectionServices     SectionKind = "services"
	SectionPortfolio    SectionKind = "portfolio"
	SectionTestimonials SectionKind = "testimonials"
	SectionAbout        SectionKind = "about"
	SectionContact      SectionKind = "contact"
	SectionOther        SectionKind = "other"
)

type Section struct {
	Kind    SectionKind `json:"kind"`
	Title   string      `json:"title"`
	Content string      `json:"content"`
}

// sectionVocabulary maps each kind to the substring matched against a
// block's text, id, and class attributes. Checked in order; first match wins.
var sectionVocabulary = []struct {
	kind    SectionKind
	keyword string
}{
	{SectionServices, "service"},
	{SectionPortfolio, "portfolio"},
	{SectionTestimonials, "testimonial"},
	{SectionAbout, "about"},
	{SectionContact, "contact"},
}

func classifySection(text, id, class string) SectionKind {
	text = strings.ToLower(text)
	id = strings.ToLower(id)
	class = strings.ToLower(class)
	for _, entry := range sectionVocabulary {
		if strings.Contains(text, entry.keyword) ||
			strings.Contains(id, entry.keyword) ||
			strings.Contains(class, entry.keyword) {
			return entry.kind
		}
	}
	return SectionOther
}
