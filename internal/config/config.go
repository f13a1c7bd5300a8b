// Package config provides centralized configuration for the improver server.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file. An empty value
	// selects the in-memory store (state is lost on restart).
	DBPath string

	// TargetRating is the content rating below which improvement work
	// is planned for a product.
	TargetRating float64

	// MarketplaceName identifies the marketplace adapter in logs and results.
	MarketplaceName string

	// MarketplaceBaseURL is the seller API base URL. An empty value
	// selects the stub adapter.
	MarketplaceBaseURL string

	// MarketplaceAPIKey authenticates against the seller API.
	MarketplaceAPIKey string

	// LLMProvider selects which LLM backend to use: "openai", "claude", "gemini", "ollama".
	LLMProvider string

	// OpenAIKey is the API key for the OpenAI service.
	OpenAIKey string

	// OpenAIBaseURL is the base URL for OpenAI-compatible endpoints.
	OpenAIBaseURL string

	// OpenAIModel is the model identifier for OpenAI completions.
	OpenAIModel string

	// AnthropicKey is the API key for the Anthropic Claude service.
	AnthropicKey string

	// AnthropicModel is the model identifier for Claude completions.
	AnthropicModel string

	// GeminiKey is the API key for the Google Gemini service.
	GeminiKey string

	// GeminiModel is the model identifier for Gemini completions.
	GeminiModel string

	// OllamaURL is the base URL for the local Ollama server.
	OllamaURL string

	// OllamaModel is the model identifier for Ollama completions.
	OllamaModel string

	// WorkerInterval is the polling interval for the background worker.
	WorkerInterval time.Duration

	// HTTPTimeout is the timeout for outgoing HTTP requests (marketplace, LLM).
	HTTPTimeout time.Duration

	// ExtractPages enables fetching public product pages as extra
	// generation context.
	ExtractPages bool

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// Load reads configuration from environment variables, applying defaults.
// A .env.local file in the working directory fills in missing variables;
// the real environment always wins.
func Load() Config {
	loadEnvFile(".env.local")

	return Config{
		Port:               envOr("PORT", "8080"),
		DBPath:             envOr("DB_PATH", "improver.db"),
		TargetRating:       envFloat("TARGET_RATING", 75),
		MarketplaceName:    envOr("MARKETPLACE_NAME", "marketplace"),
		MarketplaceBaseURL: os.Getenv("MARKETPLACE_BASE_URL"),
		MarketplaceAPIKey:  os.Getenv("MARKETPLACE_API_KEY"),
		LLMProvider:        envOr("LLM_PROVIDER", "openai"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        envOr("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicKey:       os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:     envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GeminiKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        envOr("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaURL:          envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        envOr("OLLAMA_MODEL", "llama3"),
		WorkerInterval:     envDuration("WORKER_INTERVAL", 3*time.Second),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 60*time.Second),
		ExtractPages:       envBool("EXTRACT_PAGES", false),
		CORSOrigin:         envOr("CORS_ORIGIN", "*"),
	}
}

// UseStubs returns true when no LLM API key is configured for the selected provider.
func (c Config) UseStubs() bool {
	switch c.LLMProvider {
	case "claude":
		return c.AnthropicKey == ""
	case "gemini":
		return c.GeminiKey == ""
	case "ollama":
		return false // Ollama runs locally, no key needed
	default:
		return c.OpenAIKey == ""
	}
}

// UseStubAdapter returns true when no marketplace API is configured.
func (c Config) UseStubAdapter() bool {
	return c.MarketplaceBaseURL == ""
}

// loadEnvFile reads KEY=VALUE pairs from path into the process
// environment. Variables already set keep their value. Missing files are
// ignored.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, value)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
