// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BackendKind selects the embeddings implementation behind a model key.
type BackendKind string

// Supported backend kinds.
const (
	BackendOllama BackendKind = "ollama"
	BackendOpenAI BackendKind = "openai"
	BackendCompat BackendKind = "compat"
	BackendGemini BackendKind = "gemini"
	BackendHash   BackendKind = "hash"
)

// Model keys of the built-in catalog.
const (
	ModelMiniLM    = "miniLM"
	ModelMPNet     = "mpnet"
	ModelJinaSmall = "jina-small"
	ModelOpenAI    = "openai-small"
	ModelCompat    = "compat"
	ModelGemini    = "gemini"
	ModelHash      = "hash"
)

// ModelSpec is one entry of the fixed model catalog: what a key means and how to load it.
type ModelSpec struct {
	Key         string
	DisplayName string
	Description string
	Backend     BackendKind
	// Model is the backend-specific model identifier (Ollama tag, API model name).
	Model      string
	Dimensions int
}

// Config holds all application configuration.
type Config struct {
	Port                string
	APIKey              string
	LogLevel            string
	CORSAllowedOrigins  []string
	MaxRequestBodyBytes int64

	// Analysis defaults
	DefaultModel     string
	DefaultThreshold float64
	StrictThreshold  float64
	MaxTexts         int
	PreviewLength    int

	// Model registry
	SupportedModels     []string
	ModelLoadTimeout    time.Duration
	EmbeddingCacheSize  int
	EmbeddingRateLimit  float64
	PreloadDefaultModel bool

	OllamaURL       string
	OllamaMiniLM    string
	OllamaMPNet     string
	OllamaJinaSmall string

	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIDimensions int

	CompatURL        string
	CompatAPIKey     string
	CompatModel      string
	CompatDimensions int

	GoogleAPIKey     string
	GoogleModel      string
	GoogleDimensions int

	HashModelEnabled bool
	HashDimensions   int

	// Observability
	MetricsExporter string
	TracesExporter  string
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a default value.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsList splits a comma-separated environment variable, dropping blank items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string

	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Load reads configuration from environment variables and returns a validated Config.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8000"),
		APIKey:              os.Getenv("API_KEY"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 1<<20)),

		DefaultModel:     getEnv("DEFAULT_MODEL", ModelMiniLM),
		DefaultThreshold: getEnvAsFloat("DEFAULT_THRESHOLD", 0.7),
		StrictThreshold:  getEnvAsFloat("STRICT_THRESHOLD", 0.85),
		MaxTexts:         getEnvAsInt("MAX_TEXTS", 50),
		PreviewLength:    getEnvAsInt("PREVIEW_LENGTH", 100),

		SupportedModels:     getEnvAsList("SUPPORTED_MODELS", nil),
		ModelLoadTimeout:    getEnvAsDuration("MODEL_LOAD_TIMEOUT", 60*time.Second),
		EmbeddingCacheSize:  getEnvAsInt("EMBEDDING_CACHE_SIZE", 4096),
		EmbeddingRateLimit:  getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
		PreloadDefaultModel: getEnvAsBool("PRELOAD_DEFAULT_MODEL", false),

		OllamaURL:       getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaMiniLM:    getEnv("OLLAMA_MODEL_MINILM", "all-minilm:l6-v2"),
		OllamaMPNet:     getEnv("OLLAMA_MODEL_MPNET", "all-mpnet-base-v2"),
		OllamaJinaSmall: getEnv("OLLAMA_MODEL_JINA_SMALL", "jina/jina-embeddings-v2-small-en"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		OpenAIDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1536),

		CompatURL:        os.Getenv("OPENAI_COMPAT_URL"),
		CompatAPIKey:     os.Getenv("OPENAI_COMPAT_API_KEY"),
		CompatModel:      os.Getenv("OPENAI_COMPAT_MODEL"),
		CompatDimensions: getEnvAsInt("OPENAI_COMPAT_DIMENSIONS", 0),

		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		GoogleModel:      getEnv("GOOGLE_EMBEDDING_MODEL", "gemini-embedding-001"),
		GoogleDimensions: getEnvAsInt("GOOGLE_EMBEDDING_DIMENSIONS", 768),

		HashModelEnabled: getEnvAsBool("HASH_MODEL_ENABLED", false),
		HashDimensions:   getEnvAsInt("HASH_MODEL_DIMENSIONS", 256),

		MetricsExporter: strings.ToLower(os.Getenv("OTEL_METRICS_EXPORTER")),
		TracesExporter:  strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and that the default model resolves against the catalog.
func (c *Config) Validate() error {
	if c.DefaultThreshold < 0 || c.DefaultThreshold > 1 {
		return fmt.Errorf("DEFAULT_THRESHOLD must be between 0.0 and 1.0, got %g", c.DefaultThreshold)
	}

	if c.StrictThreshold < 0 || c.StrictThreshold > 1 {
		return fmt.Errorf("STRICT_THRESHOLD must be between 0.0 and 1.0, got %g", c.StrictThreshold)
	}

	if c.MaxTexts < 2 {
		return errors.New("MAX_TEXTS must be at least 2")
	}

	if c.PreviewLength <= 0 {
		return errors.New("PREVIEW_LENGTH must be a positive integer")
	}

	if c.MaxRequestBodyBytes <= 0 {
		return errors.New("MAX_REQUEST_BODY_BYTES must be a positive integer")
	}

	if c.ModelLoadTimeout <= 0 {
		return errors.New("MODEL_LOAD_TIMEOUT must be a positive duration")
	}

	if c.EmbeddingCacheSize < 0 {
		return errors.New("EMBEDDING_CACHE_SIZE must not be negative")
	}

	if c.EmbeddingRateLimit < 0 {
		return errors.New("EMBEDDING_RATE_LIMIT must not be negative")
	}

	switch c.MetricsExporter {
	case "", "otlp", "prometheus":
	default:
		return fmt.Errorf("OTEL_METRICS_EXPORTER must be otlp or prometheus, got %q", c.MetricsExporter)
	}

	switch c.TracesExporter {
	case "", "otlp", "stdout":
	default:
		return fmt.Errorf("OTEL_TRACES_EXPORTER must be otlp or stdout, got %q", c.TracesExporter)
	}

	available := c.availableModels()
	for _, key := range c.SupportedModels {
		if !slices.ContainsFunc(available, func(s ModelSpec) bool { return s.Key == key }) {
			return fmt.Errorf("SUPPORTED_MODELS contains unknown or unconfigured model %q", key)
		}
	}

	catalog := c.ModelCatalog()
	if len(catalog) == 0 {
		return errors.New("no models configured")
	}

	if !slices.ContainsFunc(catalog, func(s ModelSpec) bool { return s.Key == c.DefaultModel }) {
		return fmt.Errorf("DEFAULT_MODEL %q is not a supported model", c.DefaultModel)
	}

	return nil
}

// ModelCatalog returns the fixed set of model keys for this process, in listing order.
// Remote backends appear only when their credentials are configured; SUPPORTED_MODELS
// restricts the result further.
func (c *Config) ModelCatalog() []ModelSpec {
	available := c.availableModels()
	if len(c.SupportedModels) == 0 {
		return available
	}

	out := make([]ModelSpec, 0, len(c.SupportedModels))

	for _, spec := range available {
		if slices.Contains(c.SupportedModels, spec.Key) {
			out = append(out, spec)
		}
	}

	return out
}

func (c *Config) availableModels() []ModelSpec {
	specs := []ModelSpec{
		{
			Key:         ModelMiniLM,
			DisplayName: "all-MiniLM-L6-v2",
			Description: "Lightweight model, fast inference, good for general use",
			Backend:     BackendOllama,
			Model:       c.OllamaMiniLM,
			Dimensions:  384,
		},
		{
			Key:         ModelMPNet,
			DisplayName: "all-mpnet-base-v2",
			Description: "High-quality embeddings, balanced speed and accuracy",
			Backend:     BackendOllama,
			Model:       c.OllamaMPNet,
			Dimensions:  768,
		},
		{
			Key:         ModelJinaSmall,
			DisplayName: "jina-embeddings-v2-small-en",
			Description: "Jina AI model, optimized for semantic search",
			Backend:     BackendOllama,
			Model:       c.OllamaJinaSmall,
			Dimensions:  512,
		},
	}

	if c.OpenAIAPIKey != "" {
		specs = append(specs, ModelSpec{
			Key:         ModelOpenAI,
			DisplayName: c.OpenAIModel,
			Description: "OpenAI hosted embeddings",
			Backend:     BackendOpenAI,
			Model:       c.OpenAIModel,
			Dimensions:  c.OpenAIDimensions,
		})
	}

	if c.CompatURL != "" && c.CompatModel != "" && c.CompatDimensions > 0 {
		specs = append(specs, ModelSpec{
			Key:         ModelCompat,
			DisplayName: c.CompatModel,
			Description: "Self-hosted model behind an OpenAI-compatible embeddings endpoint",
			Backend:     BackendCompat,
			Model:       c.CompatModel,
			Dimensions:  c.CompatDimensions,
		})
	}

	if c.GoogleAPIKey != "" {
		specs = append(specs, ModelSpec{
			Key:         ModelGemini,
			DisplayName: c.GoogleModel,
			Description: "Google Gemini hosted embeddings",
			Backend:     BackendGemini,
			Model:       c.GoogleModel,
			Dimensions:  c.GoogleDimensions,
		})
	}

	if c.HashModelEnabled {
		specs = append(specs, ModelSpec{
			Key:         ModelHash,
			DisplayName: "feature-hash",
			Description: "Deterministic offline bag-of-words hashing, no model download",
			Backend:     BackendHash,
			Dimensions:  c.HashDimensions,
		})
	}

	return specs
}
