package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	if cfg.Port != "18040" {
		t.Errorf("port: got %q", cfg.Port)
	}
	if cfg.MaxCrawlPages != 10 {
		t.Errorf("max crawl pages: got %d", cfg.MaxCrawlPages)
	}
	if cfg.MaxContentChars != 50000 {
		t.Errorf("max content chars: got %d", cfg.MaxContentChars)
	}
	if cfg.PageTimeout != 30*time.Second {
		t.Errorf("page timeout: got %v", cfg.PageTimeout)
	}
	if cfg.EnableRendering {
		t.Error("rendering should default off")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("BELLHOP_MAX_CRAWL_PAGES", "25")
	t.Setenv("BELLHOP_PAGE_TIMEOUT", "10s")
	t.Setenv("BELLHOP_ENABLE_RENDERING", "true")
	t.Setenv("BELLHOP_GUIDANCE_FILE", "/etc/bellhop/rules.json")

	cfg := LoadConfig()
	if cfg.MaxCrawlPages != 25 {
		t.Errorf("max crawl pages: got %d", cfg.MaxCrawlPages)
	}
	if cfg.PageTimeout != 10*time.Second {
		t.Errorf("page timeout: got %v", cfg.PageTimeout)
	}
	if !cfg.EnableRendering {
		t.Error("rendering should be enabled")
	}
	if cfg.GuidanceFile != "/etc/bellhop/rules.json" {
		t.Errorf("guidance file: got %q", cfg.GuidanceFile)
	}
}
