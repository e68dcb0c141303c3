// Package config loads process configuration for go-autovoice commands
// from the environment, with an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistoryRedis    = "redis"
	HistoryPostgres = "postgres"
)

// Config is the process configuration.
type Config struct {
	Env      string // GO_ENV
	LogLevel string // LOG_LEVEL
	LogFile  string // LOG_FILE

	HTTPAddr string // AUTOVOICE_ADDR

	// Voice
	DefaultMode   string        // AUTOVOICE_MODE
	Language      string        // AUTOVOICE_LANGUAGE
	ListenTimeout time.Duration // AUTOVOICE_LISTEN_TIMEOUT
	Gate          float64       // AUTOVOICE_GATE

	// Providers
	OpenAIAPIKey  string // OPENAI_API_KEY
	OpenAIBaseURL string // OPENAI_BASE_URL
	ChatModel     string // AUTOVOICE_CHAT_MODEL
	GeminiAPIKey  string // GEMINI_API_KEY
	GeminiModel   string // GEMINI_MODEL
	OllamaBaseURL string // OLLAMA_BASE_URL
	OllamaModel   string // OLLAMA_MODEL
	TTSVoice      string // AUTOVOICE_TTS_VOICE
	TTSModel      string // AUTOVOICE_TTS_MODEL

	// Audio
	AudioDevice string // AUDIO_DEVICE
	AudioPlayer string // AUDIO_PLAYER
	AudioDir    string // AUDIO_DIR

	// History
	HistoryBackend  string // HISTORY_BACKEND
	HistoryCapacity int    // HISTORY_CAPACITY
	RedisAddress    string // REDIS_ADDRESS
	RedisPassword   string // REDIS_PASSWORD
	RedisDB         int    // REDIS_DB
	PostgresDSN     string // POSTGRES_DSN

	// Web
	CacheSize int // AUTOVOICE_CACHE_SIZE
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Env:             "development",
		LogLevel:        "info",
		HTTPAddr:        ":8080",
		DefaultMode:     "command",
		Language:        "en",
		ListenTimeout:   15 * time.Second,
		Gate:            0.6,
		ChatModel:       "gpt-4o-mini",
		GeminiModel:     "gemini-2.0-flash",
		OllamaModel:     "llama3.2",
		TTSVoice:        "alloy",
		TTSModel:        "tts-1",
		AudioPlayer:     "mpg123 -q -",
		HistoryBackend:  HistoryMemory,
		HistoryCapacity: 1000,
		RedisAddress:    "localhost:6379",
		CacheSize:       512,
	}
}

// Load reads .env files (default ".env") when present, then the environment.
// Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables over Default.
func FromEnv() (*Config, error) {
	c := Default()
	var errs []error

	c.Env = str("GO_ENV", c.Env)
	c.LogLevel = str("LOG_LEVEL", c.LogLevel)
	c.LogFile = str("LOG_FILE", c.LogFile)
	c.HTTPAddr = str("AUTOVOICE_ADDR", c.HTTPAddr)

	c.DefaultMode = str("AUTOVOICE_MODE", c.DefaultMode)
	c.Language = str("AUTOVOICE_LANGUAGE", c.Language)
	c.ListenTimeout = duration("AUTOVOICE_LISTEN_TIMEOUT", c.ListenTimeout, &errs)
	c.Gate = float("AUTOVOICE_GATE", c.Gate, &errs)

	c.OpenAIAPIKey = str("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = str("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ChatModel = str("AUTOVOICE_CHAT_MODEL", c.ChatModel)
	c.GeminiAPIKey = str("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = str("GEMINI_MODEL", c.GeminiModel)
	c.OllamaBaseURL = str("OLLAMA_BASE_URL", c.OllamaBaseURL)
	c.OllamaModel = str("OLLAMA_MODEL", c.OllamaModel)
	c.TTSVoice = str("AUTOVOICE_TTS_VOICE", c.TTSVoice)
	c.TTSModel = str("AUTOVOICE_TTS_MODEL", c.TTSModel)

	c.AudioDevice = str("AUDIO_DEVICE", c.AudioDevice)
	c.AudioPlayer = str("AUDIO_PLAYER", c.AudioPlayer)
	c.AudioDir = str("AUDIO_DIR", c.AudioDir)

	c.HistoryBackend = strings.ToLower(str("HISTORY_BACKEND", c.HistoryBackend))
	c.HistoryCapacity = integer("HISTORY_CAPACITY", c.HistoryCapacity, &errs)
	c.RedisAddress = str("REDIS_ADDRESS", c.RedisAddress)
	c.RedisPassword = str("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = integer("REDIS_DB", c.RedisDB, &errs)
	c.PostgresDSN = str("POSTGRES_DSN", c.PostgresDSN)

	c.CacheSize = integer("AUTOVOICE_CACHE_SIZE", c.CacheSize, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.HistoryBackend {
	case HistoryMemory, HistoryRedis:
	case HistoryPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: POSTGRES_DSN required for postgres history")
		}
	default:
		return fmt.Errorf("config: unknown history backend %q", c.HistoryBackend)
	}
	if c.Gate <= 0 || c.Gate > 1 {
		return fmt.Errorf("config: gate must be in (0, 1], got %v", c.Gate)
	}
	if c.ListenTimeout < 0 {
		return errors.New("config: listen timeout must not be negative")
	}
	if c.CacheSize < 0 {
		return errors.New("config: cache size must not be negative")
	}
	return nil
}

// IsProduction reports whether GO_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PlayerArgs splits AudioPlayer into a command and its arguments.
func (c *Config) PlayerArgs() (string, []string) {
	fields := strings.Fields(c.AudioPlayer)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func integer(key string, def int, errs *[]error) int {
	v := str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return n
}

func float(key string, def float64, errs *[]error) float64 {
	v := str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return f
}

func duration(key string, def time.Duration, errs *[]error) time.Duration {
	v := str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return d
}
