package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGroq     = "groq"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	DefaultModel = "llama3-70b-8192"

	// SearchResultCap is the hard upper bound on web search results per query.
	SearchResultCap = 5

	// MinIterations and MaxIterationsCap bound the reasoning loop length.
	MinIterations    = 5
	MaxIterationsCap = 10
)

var (
	ErrMissingAPIKey       = errors.New("missing LLM API key")
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`

	LLMProvider    string        `json:"llm_provider"`
	LLMModel       string        `json:"llm_model"`
	BackendURL     string        `json:"backend_url"`
	LLMTemperature float32       `json:"llm_temperature"`
	LLMMaxTokens   int           `json:"llm_max_tokens"`
	LLMTimeout     time.Duration `json:"llm_timeout"`

	// AI Model API Keys
	GroqAPIKey     string `json:"-"`
	OpenAIAPIKey   string `json:"-"`
	DeepSeekAPIKey string `json:"-"`

	MaxIterations    int           `json:"max_iterations"`
	MemoryMaxTurns   int           `json:"memory_max_turns"`
	SearchMaxResults int           `json:"search_max_results"`
	ToolTimeout      time.Duration `json:"tool_timeout"`

	CacheEnabled bool `json:"cache_enabled"`

	ServerAddr string `json:"server_addr"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`

	// Eino Debug configuration
	EinoDebugEnabled bool `json:"eino_debug_enabled"`
	EinoDebugPort    int  `json:"eino_debug_port"`

	// Longport API Configuration
	LongportAppKey      string `json:"-"`
	LongportAppSecret   string `json:"-"`
	LongportAccessToken string `json:"-"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, ".cache"),

		LLMProvider:    ProviderGroq,
		LLMModel:       DefaultModel,
		BackendURL:     "",
		LLMTemperature: 0,
		LLMMaxTokens:   2048,
		LLMTimeout:     60 * time.Second,

		MaxIterations:    8,
		MemoryMaxTurns:   0,
		SearchMaxResults: SearchResultCap,
		ToolTimeout:      20 * time.Second,

		CacheEnabled: false,

		ServerAddr: ":8000",
		LogLevel:   "info",
		LogFormat:  "text",

		EinoDebugEnabled: false,
		EinoDebugPort:    52538,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = strings.ToLower(strings.TrimSpace(val))
	}
	if val := os.Getenv("LLM_MODEL"); val != "" {
		c.LLMModel = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("LLM_TEMPERATURE"); val != "" {
		if v, err := strconv.ParseFloat(val, 32); err == nil {
			c.LLMTemperature = float32(v)
		}
	}
	if val := os.Getenv("LLM_MAX_TOKENS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.LLMMaxTokens = v
		}
	}
	if val := os.Getenv("LLM_TIMEOUT"); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			c.LLMTimeout = v
		}
	}

	if val := os.Getenv("GROQ_API_KEY"); val != "" {
		c.GroqAPIKey = val
	}
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		c.OpenAIAPIKey = val
	}
	if val := os.Getenv("DEEPSEEK_API_KEY"); val != "" {
		c.DeepSeekAPIKey = val
	}

	if val := os.Getenv("MAX_ITERATIONS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MaxIterations = v
		}
	}
	if val := os.Getenv("MEMORY_MAX_TURNS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.MemoryMaxTurns = v
		}
	}
	if val := os.Getenv("SEARCH_MAX_RESULTS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.SearchMaxResults = v
		}
	}
	if val := os.Getenv("TOOL_TIMEOUT"); val != "" {
		if v, err := time.ParseDuration(val); err == nil {
			c.ToolTimeout = v
		}
	}

	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}

	if val := os.Getenv("SERVER_ADDR"); val != "" {
		c.ServerAddr = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.LogLevel = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.LogFormat = strings.ToLower(val)
	}

	if val := os.Getenv("EINO_DEBUG_ENABLED"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.EinoDebugEnabled = enabled
		}
	}
	if val := os.Getenv("EINO_DEBUG_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.EinoDebugPort = port
		}
	}

	if val := os.Getenv("LONGPORT_APP_KEY"); val != "" {
		c.LongportAppKey = val
	}
	if val := os.Getenv("LONGPORT_APP_SECRET"); val != "" {
		c.LongportAppSecret = val
	}
	if val := os.Getenv("LONGPORT_ACCESS_TOKEN"); val != "" {
		c.LongportAccessToken = val
	}
}

// APIKey returns the credential for the configured LLM provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderDeepSeek:
		return c.DeepSeekAPIKey
	default:
		return c.GroqAPIKey
	}
}

// APIKeyEnv names the environment variable APIKey reads for the current provider.
func (c *Config) APIKeyEnv() string {
	switch c.LLMProvider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// LongportConfigured reports whether all three Longport credentials are set.
func (c *Config) LongportConfigured() bool {
	return c.LongportAppKey != "" && c.LongportAppSecret != "" && c.LongportAccessToken != ""
}

// Validate checks the settings the agent cannot start without.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq, ProviderOpenAI, ProviderDeepSeek:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.LLMProvider)
	}
	if strings.TrimSpace(c.APIKey()) == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, c.APIKeyEnv())
	}
	if c.MaxIterations < MinIterations || c.MaxIterations > MaxIterationsCap {
		return fmt.Errorf("max iterations must be between %d and %d, got %d", MinIterations, MaxIterationsCap, c.MaxIterations)
	}
	if c.MemoryMaxTurns < 0 {
		return fmt.Errorf("memory max turns must not be negative, got %d", c.MemoryMaxTurns)
	}
	return nil
}

// EffectiveSearchMax clamps SearchMaxResults into [1, SearchResultCap].
func (c *Config) EffectiveSearchMax() int {
	if c.SearchMaxResults <= 0 || c.SearchMaxResults > SearchResultCap {
		return SearchResultCap
	}
	return c.SearchMaxResults
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir}
	if c.CacheEnabled {
		dirs = append(dirs, c.DataCacheDir)
	}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
