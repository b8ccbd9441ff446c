package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	AllowOrigin      string
	TavilyAPIKey     string
	TavilyBaseURL    string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	LLMProvider      string
	LLMModel         string
	LLMBaseURL       string
	StoreBackend     string
	PostgresURL      string
	MaxSearchResults int
	ScrapeCharLimit  int
	SummarizeAfter   int
	ResearchWorkers  int
}

func Load() Config {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:             getEnv("PRICEWISE_PORT", "8080"),
		AllowOrigin:      getEnv("PRICEWISE_ALLOW_ORIGIN", "http://localhost:3000"),
		TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL:    getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		StoreBackend:     getEnv("STORE_BACKEND", "memory"),
		PostgresURL:      postgresURL,
		MaxSearchResults: getEnvInt("MAX_SEARCH_RESULTS", 5),
		ScrapeCharLimit:  getEnvInt("SCRAPE_CHAR_LIMIT", 3000),
		SummarizeAfter:   getEnvInt("SUMMARIZE_AFTER_MESSAGES", 5),
		ResearchWorkers:  getEnvInt("RESEARCH_MAX_WORKERS", 5),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "pricewise")
	password := getEnv("POSTGRES_PASSWORD", "pricewise")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "pricewise")
	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + database + "?sslmode=disable"
}
