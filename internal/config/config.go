package config

import (
	"time"

	"bellhop/pkg/config"
)

// Config stores environment configuration for Bellhop.
type Config struct {
	Port            string
	DatabaseURL     string
	LLMProvider     string
	LLMModel        string
	LLMAPIKey       string
	LLMAPIURL       string
	LLMMaxTokens    int
	MaxCrawlPages   int
	MaxContentChars int
	PageTimeout     time.Duration
	MinCrawlDelay   time.Duration
	EnableRendering bool
	GuidanceFile    string
	MaxHistory      int
}

// LoadConfig loads the Bellhop configuration from environment variables.
// DATABASE_URL is optional: without it conversation state lives only in the
// request/response cycle and the in-memory session store.
func LoadConfig() Config {
	return Config{
		Port:            config.GetEnv("PORT", "18040"),
		DatabaseURL:     config.GetEnv("DATABASE_URL", ""),
		LLMProvider:     config.GetEnv("LLM_PROVIDER", "openai"),
		LLMModel:        config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:       config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:       config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens:    config.GetEnvInt("LLM_MAX_TOKENS", 4096),
		MaxCrawlPages:   config.GetEnvInt("BELLHOP_MAX_CRAWL_PAGES", 10),
		MaxContentChars: config.GetEnvInt("BELLHOP_MAX_CONTENT_CHARS", 50000),
		PageTimeout:     config.GetEnvDuration("BELLHOP_PAGE_TIMEOUT", 30*time.Second),
		MinCrawlDelay:   config.GetEnvDuration("BELLHOP_MIN_CRAWL_DELAY", 200*time.Millisecond),
		EnableRendering: config.GetEnvBool("BELLHOP_ENABLE_RENDERING", false),
		GuidanceFile:    config.GetEnv("BELLHOP_GUIDANCE_FILE", ""),
		MaxHistory:      config.GetEnvInt("BELLHOP_MAX_HISTORY_MESSAGES", 20),
	}
}
