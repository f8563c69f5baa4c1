package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"bellhop/internal/crawl"
	"bellhop/internal/guidance"
	"bellhop/internal/profile"
	"bellhop/pkg/llm"
)

type fakeExtractor struct {
	fragments  []profile.Fragment
	lastCorpus string
	lastSource profile.Source
	calls      int
}

func (f *fakeExtractor) ExtractAll(_ context.Context, corpus string, _ []llm.Message, source profile.Source) []profile.Fragment {
	f.calls++
	f.lastCorpus = corpus
	f.lastSource = source
	return f.fragments
}

type fakeCrawler struct {
	result  *crawl.Result
	err     error
	lastURL string
	calls   int
}

func (f *fakeCrawler) Crawl(_ context.Context, seedURL string, _ int) (*crawl.Result, error) {
	f.calls++
	f.lastURL = seedURL
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type staticProvider struct {
	reply string
	err   error
	calls int
}

func (p *staticProvider) Complete(_ context.Context, _ []llm.Message) (string, error) {
	p.calls++
	return p.reply, p.err
}

func testRules() []guidance.Rule {
	return []guidance.Rule{
		{
			ID:             "name",
			Priority:       1,
			Category:       "business",
			RequiredInfo:   []string{"businessName"},
			PromptTemplate: "What is your business called?",
		},
		{
			ID:             "offerings",
			Priority:       2,
			Category:       "service",
			RequiredInfo:   []string{"services"},
			PromptTemplate: "What services do you offer?",
		},
	}
}

func scalarFragment(field, value string, confidence float64) profile.Fragment {
	return profile.Fragment{
		Field:      field,
		Value:      profile.Value{Scalar: value},
		Confidence: confidence,
		Source:     profile.SourceConversation,
	}
}

func TestGreetingTurnUsesTemplateWithoutLLM(t *testing.T) {
	provider := &staticProvider{reply: "should not be used"}
	extractor := &fakeExtractor{}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), provider, nil)

	state, reply, err := engine.ProcessTurn(context.Background(), engine.NewState(), "")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if reply != "What is your business called?" {
		t.Errorf("greeting = %q, want first rule prompt", reply)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times on greeting turn, want 0", provider.calls)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor called %d times on greeting turn, want 0", extractor.calls)
	}
	if len(state.Messages) != 1 || state.Messages[0].Role != "assistant" {
		t.Fatalf("messages after greeting = %+v", state.Messages)
	}
}

func TestEmptyMessageInOngoingConversationIsAnError(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, guidance.NewScheduler(testRules()), &staticProvider{}, nil)

	state := engine.NewState()
	state.Messages = []llm.Message{{Role: "assistant", Content: "hi"}}
	if _, _, err := engine.ProcessTurn(context.Background(), state, "  "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestProcessTurnExtractsAndReplies(t *testing.T) {
	provider := &staticProvider{reply: "Nice to meet you, Acme!"}
	extractor := &fakeExtractor{fragments: []profile.Fragment{scalarFragment("businessName", "Acme", 0.9)}}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), provider, nil)

	state, reply, err := engine.ProcessTurn(context.Background(), engine.NewState(), "We're called Acme")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if reply != "Nice to meet you, Acme!" {
		t.Errorf("reply = %q", reply)
	}
	if got := state.Profile.Values["businessName"].Scalar; got != "Acme" {
		t.Errorf("businessName = %q, want Acme", got)
	}
	if state.Guidance.CurrentPriority != 2 {
		t.Errorf("guidance priority = %d, want advance to 2", state.Guidance.CurrentPriority)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("message count = %d, want user+assistant", len(state.Messages))
	}
	if state.Messages[0].Role != "user" || state.Messages[1].Role != "assistant" {
		t.Errorf("message roles = %q, %q", state.Messages[0].Role, state.Messages[1].Role)
	}
}

func TestProcessTurnCrawlsPastedURL(t *testing.T) {
	crawler := &fakeCrawler{result: &crawl.Result{
		Pages: []crawl.PageRecord{{
			URL:         "https://acme-plumbing.com/",
			Title:       "Acme Plumbing",
			Description: "Emergency plumbing in Springfield",
		}},
		Images: []crawl.ImageRef{{URL: "https://acme-plumbing.com/logo.png", IsLogo: true}},
	}}
	extractor := &fakeExtractor{}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), &staticProvider{reply: "Found your site!"}, nil,
		WithCrawler(crawler))

	state, _, err := engine.ProcessTurn(context.Background(), engine.NewState(), "acme-plumbing.com")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if crawler.lastURL != "https://acme-plumbing.com" {
		t.Errorf("crawled %q, want scheme-normalized URL", crawler.lastURL)
	}
	if state.WebsiteURL != "https://acme-plumbing.com" {
		t.Errorf("WebsiteURL = %q", state.WebsiteURL)
	}
	if !strings.Contains(state.Corpus, "Acme Plumbing") || !strings.Contains(state.Corpus, "Emergency plumbing") {
		t.Errorf("corpus missing page text: %q", state.Corpus)
	}
	if extractor.lastSource != profile.SourceWebsite {
		t.Errorf("extraction source = %q, want website", extractor.lastSource)
	}
	if len(state.Images) != 1 || !state.Images[0].IsLogo {
		t.Errorf("images = %+v", state.Images)
	}
}

func TestProcessTurnSecondURLDoesNotRecrawl(t *testing.T) {
	crawler := &fakeCrawler{result: &crawl.Result{}}
	engine := NewEngine(&fakeExtractor{}, guidance.NewScheduler(testRules()), &staticProvider{reply: "ok"}, nil,
		WithCrawler(crawler))

	state, _, err := engine.ProcessTurn(context.Background(), engine.NewState(), "acme.com")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	state, _, err = engine.ProcessTurn(context.Background(), state, "othersite.com")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if crawler.calls != 1 {
		t.Errorf("crawler called %d times, want 1", crawler.calls)
	}
	if state.WebsiteURL != "https://acme.com" {
		t.Errorf("WebsiteURL = %q, want the first site kept", state.WebsiteURL)
	}
}

func TestProcessTurnCrawlFailureDegrades(t *testing.T) {
	crawler := &fakeCrawler{err: errors.New("connection refused")}
	provider := &staticProvider{reply: "should not be used"}
	engine := NewEngine(&fakeExtractor{}, guidance.NewScheduler(testRules()), provider, nil,
		WithCrawler(crawler))

	state, reply, err := engine.ProcessTurn(context.Background(), engine.NewState(), "acme.com")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if reply != crawlFailureReply {
		t.Errorf("reply = %q, want crawl failure reply", reply)
	}
	if state.WebsiteURL != "" {
		t.Errorf("WebsiteURL = %q, want empty after failed crawl", state.WebsiteURL)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times after failed crawl, want 0", provider.calls)
	}
}

func TestProcessTurnLLMFailureFallsBackToTemplate(t *testing.T) {
	provider := &staticProvider{err: errors.New("upstream 500")}
	engine := NewEngine(&fakeExtractor{}, guidance.NewScheduler(testRules()), provider, nil)

	_, reply, err := engine.ProcessTurn(context.Background(), engine.NewState(), "hello there")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if reply != "What is your business called?" {
		t.Errorf("fallback reply = %q, want current rule prompt", reply)
	}
}

func TestProcessTurnWrapUpWhenAllRulesSatisfied(t *testing.T) {
	provider := &staticProvider{err: errors.New("force template fallback")}
	extractor := &fakeExtractor{fragments: []profile.Fragment{
		scalarFragment("businessName", "Acme", 0.9),
		{Field: "services", Value: profile.Value{List: []string{"plumbing"}}, Confidence: 0.8, Source: profile.SourceConversation},
	}}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), provider, nil)

	state, reply, err := engine.ProcessTurn(context.Background(), engine.NewState(), "Acme, we do plumbing")
	if err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if !state.Guidance.Done {
		t.Error("guidance not terminal after all fields filled")
	}
	if reply != guidance.WrapUpPrompt {
		t.Errorf("reply = %q, want wrap-up prompt", reply)
	}
	if engine.Stage(state) != "complete" {
		t.Errorf("stage = %q, want complete", engine.Stage(state))
	}
}

func TestProcessTurnDoesNotMutateInput(t *testing.T) {
	extractor := &fakeExtractor{fragments: []profile.Fragment{scalarFragment("businessName", "Acme", 0.9)}}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), &staticProvider{reply: "ok"}, nil)

	initial := engine.NewState()
	initial.Messages = []llm.Message{{Role: "assistant", Content: "greeting"}}

	if _, _, err := engine.ProcessTurn(context.Background(), initial, "We're Acme"); err != nil {
		t.Fatalf("ProcessTurn: %v", err)
	}
	if len(initial.Messages) != 1 {
		t.Errorf("input messages mutated: %d entries", len(initial.Messages))
	}
	if len(initial.Profile.Values) != 0 {
		t.Errorf("input profile mutated: %+v", initial.Profile.Values)
	}
	if initial.Guidance.CurrentPriority != 1 {
		t.Errorf("input guidance mutated: %+v", initial.Guidance)
	}
}

func TestProcessTurnCapsHistory(t *testing.T) {
	engine := NewEngine(&fakeExtractor{}, guidance.NewScheduler(testRules()), &staticProvider{reply: "ok"}, nil,
		WithMaxHistory(4))

	state := engine.NewState()
	var err error
	for i := 0; i < 6; i++ {
		state, _, err = engine.ProcessTurn(context.Background(), state, fmt.Sprintf("message %d", i))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	if len(state.Messages) != 4 {
		t.Errorf("history length = %d, want capped at 4", len(state.Messages))
	}
	if state.Messages[len(state.Messages)-1].Role != "assistant" {
		t.Error("newest message lost by cap")
	}
}

func TestAccumulateMergesWithoutReply(t *testing.T) {
	provider := &staticProvider{}
	extractor := &fakeExtractor{fragments: []profile.Fragment{scalarFragment("businessName", "Acme", 0.7)}}
	engine := NewEngine(extractor, guidance.NewScheduler(testRules()), provider, nil)

	state := engine.Accumulate(context.Background(), engine.NewState(), "Acme Plumbing. Springfield's plumbers.", nil)
	if got := state.Profile.Values["businessName"].Scalar; got != "Acme" {
		t.Errorf("businessName = %q", got)
	}
	if extractor.lastSource != profile.SourceWebsite {
		t.Errorf("source = %q, want website for corpus input", extractor.lastSource)
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times, want 0", provider.calls)
	}
	if state.Guidance.CurrentPriority != 2 {
		t.Errorf("guidance priority = %d, want 2", state.Guidance.CurrentPriority)
	}
}

func TestDetectURL(t *testing.T) {
	tests := []struct {
		message string
		want    string
		ok      bool
	}{
		{"acme.com", "https://acme.com", true},
		{"https://acme.com", "https://acme.com", true},
		{"http://acme.com/about", "http://acme.com/about", true},
		{"  acme-plumbing.co.uk  ", "https://acme-plumbing.co.uk", true},
		{"check out acme.com please", "", false},
		{"hello there", "", false},
		{"", "", false},
		{"v1.2.3", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectURL(tt.message)
		if ok != tt.ok || got != tt.want {
			t.Errorf("DetectURL(%q) = %q, %v; want %q, %v", tt.message, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBuildCorpus(t *testing.T) {
	pages := []crawl.PageRecord{
		{
			Title:       "Acme Plumbing",
			Description: "Emergency plumbing",
			Sections: []crawl.Section{
				{Kind: crawl.SectionServices, Title: "Our Services", Content: "Drain cleaning and repair."},
			},
			Content: "should be ignored when sections exist",
		},
		{
			Title:   "Contact",
			Content: "Call us at 555-0100.",
		},
	}

	corpus := BuildCorpus(pages, 0)
	for _, want := range []string{"Acme Plumbing", "Emergency plumbing", "Our Services", "Drain cleaning", "Call us at 555-0100."} {
		if !strings.Contains(corpus, want) {
			t.Errorf("corpus missing %q", want)
		}
	}
	if strings.Contains(corpus, "should be ignored") {
		t.Error("page content included despite sections being present")
	}

	if got := BuildCorpus(pages, 10); len([]rune(got)) != 10 {
		t.Errorf("truncated corpus length = %d, want 10", len([]rune(got)))
	}
}
