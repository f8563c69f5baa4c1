package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaDefaultsToLocalhost(t *testing.T) {
	p := NewOllamaProvider(Config{Model: "llama3"})
	if p.openai.apiURL != "http://localhost:11434/v1" {
		t.Fatalf("unexpected default URL %q", p.openai.apiURL)
	}
}

func TestOllamaCompleteDelegates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(Config{Model: "llama3", APIURL: srv.URL})
	reply, err := p.Complete(context.Background(), []Message{{Role: "user", Content: "ping"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if reply != "pong" {
		t.Fatalf("unexpected reply %q", reply)
	}
}
