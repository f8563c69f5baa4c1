package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bellhop/internal/crawl"
	"bellhop/internal/guidance"
	"bellhop/internal/profile"
	"bellhop/pkg/llm"
	"bellhop/pkg/logging"
)

const defaultMaxHistoryMessages = 20

// bareURLRe matches a user message that consists of nothing but a URL,
// with or without a scheme ("acme-plumbing.com" counts).
var bareURLRe = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})(/[\w ./?=&%-]*)?$`)

// TurnState is everything the engine knows about one conversation. It is a
// plain serializable value: the caller loads it before a turn, threads it
// through ProcessTurn, and persists whatever comes back. The engine never
// keeps per-conversation state in memory between calls.
type TurnState struct {
	Profile    profile.Profile  `json:"profile"`
	Guidance   guidance.State   `json:"guidance"`
	Corpus     string           `json:"corpus,omitempty"`
	WebsiteURL string           `json:"website_url,omitempty"`
	Images     []crawl.ImageRef `json:"images,omitempty"`
	Messages   []llm.Message    `json:"messages,omitempty"`
}

func (s TurnState) clone() TurnState {
	out := s
	out.Profile = s.Profile.Clone()
	out.Images = append([]crawl.ImageRef(nil), s.Images...)
	out.Messages = append([]llm.Message(nil), s.Messages...)
	return out
}

// Crawler fetches a site starting from a seed URL. *crawl.Crawler satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string, maxPages int) (*crawl.Result, error)
}

// Extractor pulls profile fragments out of a corpus and transcript.
// *profile.Extractor satisfies it.
type Extractor interface {
	ExtractAll(ctx context.Context, corpus string, transcript []llm.Message, source profile.Source) []profile.Fragment
}

type Engine struct {
	crawler   Crawler
	extractor Extractor
	scheduler *guidance.Scheduler
	provider  llm.Provider
	logger    logging.Logger

	maxCrawlPages  int
	maxCorpusRunes int
	maxHistory     int
}

type EngineOption func(*Engine)

func WithCrawler(c Crawler) EngineOption {
	return func(e *Engine) { e.crawler = c }
}

func WithMaxCrawlPages(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxCrawlPages = n
		}
	}
}

func WithMaxCorpusRunes(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxCorpusRunes = n
		}
	}
}

func WithMaxHistory(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxHistory = n
		}
	}
}

func NewEngine(extractor Extractor, scheduler *guidance.Scheduler, provider llm.Provider, logger logging.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = logging.NewLogger()
	}
	e := &Engine{
		extractor:      extractor,
		scheduler:      scheduler,
		provider:       provider,
		logger:         logger,
		maxCrawlPages:  crawl.DefaultMaxPages,
		maxCorpusRunes: crawl.DefaultMaxContentRunes,
		maxHistory:     defaultMaxHistoryMessages,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewState returns the starting state for a fresh conversation.
func (e *Engine) NewState() TurnState {
	return TurnState{
		Profile:  profile.New(),
		Guidance: e.scheduler.NewState(),
	}
}

// Stage names the conversation phase for API responses: the current rule's
// category, or "complete" once every rule is satisfied.
func (e *Engine) Stage(state TurnState) string {
	if state.Guidance.Done {
		return "complete"
	}
	if rule, ok := e.scheduler.CurrentRule(state.Guidance); ok {
		return rule.Category
	}
	return "complete"
}

// ProcessTurn runs one conversation turn: detect and crawl a pasted website
// URL, extract profile fragments from everything known so far, merge them,
// advance the guidance cursor, and produce the assistant's reply. The input
// state is not mutated; the caller persists the returned state.
//
// Failures inside the turn degrade rather than abort: a failed crawl gets an
// apologetic reply, a failed LLM call falls back to the guidance template.
// Only an empty message is an error.
func (e *Engine) ProcessTurn(ctx context.Context, state TurnState, userMessage string) (TurnState, string, error) {
	startedAt := time.Now()
	next := state.clone()
	userMessage = strings.TrimSpace(userMessage)

	// A brand-new conversation with no message yet gets the opening
	// guidance prompt without touching the LLM.
	if userMessage == "" && len(next.Messages) == 0 {
		reply := e.scheduler.Prompt(next.Guidance)
		next.Messages = appendCapped(next.Messages, llm.Message{Role: "assistant", Content: reply}, e.maxHistory)
		turnsTotal.WithLabelValues("greeting").Inc()
		return next, reply, nil
	}
	if userMessage == "" {
		return state, "", fmt.Errorf("message is empty")
	}

	next.Messages = appendCapped(next.Messages, llm.Message{Role: "user", Content: userMessage}, e.maxHistory)

	crawlFailed := false
	source := profile.SourceConversation
	if target, ok := DetectURL(userMessage); ok && e.crawler != nil && next.WebsiteURL == "" {
		result, err := e.crawler.Crawl(ctx, target, e.maxCrawlPages)
		if err != nil {
			e.logger.WithError(err).WithField("url", target).Warn("Website crawl failed, continuing without it")
			crawlTriggersTotal.WithLabelValues("error").Inc()
			crawlFailed = true
		} else {
			next.WebsiteURL = target
			next.Corpus = BuildCorpus(result.Pages, e.maxCorpusRunes)
			next.Images = crawl.MergeImages(next.Images, result.Images)
			source = profile.SourceWebsite
			crawlTriggersTotal.WithLabelValues("ok").Inc()
		}
	}

	fragments := e.extractor.ExtractAll(ctx, next.Corpus, next.Messages, source)
	next.Profile = profile.Merge(next.Profile, fragments, time.Now())
	next.Guidance = e.scheduler.Advance(next.Guidance, next.Profile)

	var reply string
	switch {
	case crawlFailed:
		reply = crawlFailureReply
	default:
		out, err := e.provider.Complete(ctx, e.buildPromptMessages(next))
		if err != nil {
			e.logger.WithError(err).Warn("LLM reply failed, falling back to guidance template")
			reply = ""
		} else {
			reply = strings.TrimSpace(out)
		}
		if reply == "" {
			reply = e.scheduler.Prompt(next.Guidance)
		}
	}

	next.Messages = appendCapped(next.Messages, llm.Message{Role: "assistant", Content: reply}, e.maxHistory)
	turnsTotal.WithLabelValues("ok").Inc()
	turnDuration.Observe(time.Since(startedAt).Seconds())
	return next, reply, nil
}

// Accumulate runs the extract-merge-advance half of a turn without
// generating a reply. It backs the knowledge update endpoint.
func (e *Engine) Accumulate(ctx context.Context, state TurnState, corpus string, transcript []llm.Message) TurnState {
	next := state.clone()
	if corpus != "" {
		next.Corpus = truncateRunes(corpus, e.maxCorpusRunes)
	}
	if len(transcript) > 0 {
		next.Messages = capHistory(append(next.Messages, transcript...), e.maxHistory)
	}

	source := profile.SourceConversation
	if corpus != "" {
		source = profile.SourceWebsite
	}
	fragments := e.extractor.ExtractAll(ctx, next.Corpus, next.Messages, source)
	next.Profile = profile.Merge(next.Profile, fragments, time.Now())
	next.Guidance = e.scheduler.Advance(next.Guidance, next.Profile)
	return next
}

// DetectURL reports whether a message is a bare website URL and returns it
// normalized with an https scheme.
func DetectURL(message string) (string, bool) {
	candidate := strings.TrimSpace(message)
	if candidate == "" || strings.ContainsAny(candidate, "\n\t") {
		return "", false
	}
	if !bareURLRe.MatchString(strings.ToLower(candidate)) {
		return "", false
	}
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		candidate = "https://" + candidate
	}
	return candidate, true
}

// BuildCorpus flattens crawled pages into one text blob for the extractors:
// title, description, then section or page content, per page in crawl order.
func BuildCorpus(pages []crawl.PageRecord, maxRunes int) string {
	var b strings.Builder
	for _, page := range pages {
		if page.Title != "" {
			b.WriteString(page.Title)
			b.WriteString("\n")
		}
		if page.Description != "" {
			b.WriteString(page.Description)
			b.WriteString("\n")
		}
		if len(page.Sections) > 0 {
			for _, section := range page.Sections {
				if section.Title != "" {
					b.WriteString(section.Title)
					b.WriteString("\n")
				}
				b.WriteString(section.Content)
				b.WriteString("\n")
			}
		} else if page.Content != "" {
			b.WriteString(page.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return truncateRunes(strings.TrimSpace(b.String()), maxRunes)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func appendCapped(messages []llm.Message, msg llm.Message, max int) []llm.Message {
	return capHistory(append(messages, msg), max)
}

func capHistory(messages []llm.Message, max int) []llm.Message {
	if max <= 0 || len(messages) <= max {
		return messages
	}
	return messages[len(messages)-max:]
}
