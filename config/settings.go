// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings holds all application configuration.
type Settings struct {
	LLM    LLMConfig
	Orch   OrchConfig
	Store  StoreConfig
	Tools  ToolsConfig
	Server ServerConfig
}

// LLMConfig holds remote model service configuration.
type LLMConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int64
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	Instructions string
	// ReasoningEffort is forwarded to reasoning-capable models.
	// Empty leaves the provider default in place.
	ReasoningEffort string
}

// OrchConfig holds orchestrator configuration.
type OrchConfig struct {
	// MaxToolDepth is the ceiling on chained tool-call continuations
	// within a single user turn. A safety valve, not business logic.
	MaxToolDepth int
}

// StoreConfig holds session persistence configuration.
type StoreConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	FallbackDir   string
}

// ToolsConfig holds tool behavior configuration.
type ToolsConfig struct {
	// MaxAlternatives caps how many candidates provide_alternatives relays.
	MaxAlternatives int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr string
}

// DefaultInstructions is the system prompt sent with every response request.
const DefaultInstructions = `You are a music assistant that controls the user's Spotify account.
Interpret the user's natural-language command and use the available tools to act on it.
When a requested song is unavailable or rejected, offer alternatives via the provide_alternatives tool.
Keep answers short and conversational.`

// New loads settings from environment variables.
// Returns an error if a variable contains an invalid value.
func New() (Settings, error) {
	maxTokens, err := getEnvInt64("LLM_MAX_TOKENS", 1024)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}

	timeoutSecs, err := getEnvInt("LLM_TIMEOUT_SECONDS", 60)
	if err != nil {
		return Settings{}, err
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}

	maxToolDepth, err := getEnvInt("ORCH_MAX_TOOL_DEPTH", 10)
	if err != nil {
		return Settings{}, err
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return Settings{}, err
	}

	ttlSecs, err := getEnvInt("SESSION_TTL_SECONDS", 60*60*24*7)
	if err != nil {
		return Settings{}, err
	}

	maxAlternatives, err := getEnvInt("TOOLS_MAX_ALTERNATIVES", 5)
	if err != nil {
		return Settings{}, err
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
	}

	instructions := os.Getenv("LLM_INSTRUCTIONS")
	if instructions == "" {
		instructions = DefaultInstructions
	}

	fallbackDir := os.Getenv("SESSION_FALLBACK_DIR")
	if fallbackDir == "" {
		fallbackDir = ".tempo/sessions"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	return Settings{
		LLM: LLMConfig{
			APIKey:          os.Getenv("OPENAI_API_KEY"),
			Model:           model,
			MaxTokens:       maxTokens,
			Temperature:     temperature,
			Timeout:         time.Duration(timeoutSecs) * time.Second,
			MaxRetries:      maxRetries,
			Instructions:    instructions,
			ReasoningEffort: os.Getenv("LLM_REASONING_EFFORT"),
		},
		Orch: OrchConfig{
			MaxToolDepth: maxToolDepth,
		},
		Store: StoreConfig{
			RedisAddr:     redisAddr,
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,
			SessionTTL:    time.Duration(ttlSecs) * time.Second,
			FallbackDir:   fallbackDir,
		},
		Tools: ToolsConfig{
			MaxAlternatives: maxAlternatives,
		},
		Server: ServerConfig{
			Addr: addr,
		},
	}, nil
}

// MustNew loads settings, panicking on invalid values.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// APIKey returns the OpenAI API key or an error if unset.
func APIKey() (string, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return key, nil
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
