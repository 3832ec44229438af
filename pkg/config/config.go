// Package config загружает настройки research-агента.
//
// Источники в порядке приоритета (последний побеждает):
//  1. Default(): встроенные значения
//  2. YAML файл с подстановкой ${VAR} через os.ExpandEnv
//  3. Переменные окружения (EnvOverrides), включая .env файл
//
// Правило 2: все настройки из конфигурации, никакого хардкода в логике.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// AppConfig корневая структура конфигурации, зеркалит config.yaml.
type AppConfig struct {
	Models     ModelsConfig     `yaml:"models"`
	Search     SearchConfig     `yaml:"search"`
	Scrape     ScrapeConfig     `yaml:"scrape"`
	Agent      AgentConfig      `yaml:"agent"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Memory     MemoryConfig     `yaml:"memory"`
	Server     ServerConfig     `yaml:"server"`
	History    HistoryConfig    `yaml:"history"`
	Archive    S3Config         `yaml:"trace_archive"`
	App        AppSpecific      `yaml:"app"`
}

// ModelsConfig настройки AI моделей.
type ModelsConfig struct {
	DefaultChat    string              `yaml:"default_chat"`    // Модель для решений агента
	DefaultSummary string              `yaml:"default_summary"` // Модель для суммаризации и сжатия памяти, пусто = default_chat
	Definitions    map[string]ModelDef `yaml:"definitions"`
}

// ModelDef параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "openai", "zai", "deepseek", "openrouter"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"` // "60s", "1m"
	BaseURL     string        `yaml:"base_url"`
}

// SearchConfig поисковый провайдер (Serper).
type SearchConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RateLimit  int           `yaml:"rate_limit"` // Запросов в минуту
	BurstLimit int           `yaml:"burst_limit"`
}

// Бэкенды рендеринга страниц.
const (
	ScrapeBackendHTTP = "http" // REST /content сервиса рендеринга
	ScrapeBackendCDP  = "cdp"  // Удалённый Chrome через DevTools протокол
)

// ScrapeConfig сервис рендеринга страниц (browserless).
type ScrapeConfig struct {
	Backend            string        `yaml:"backend"`
	Endpoint           string        `yaml:"endpoint"` // REST endpoint для backend=http
	CDPURL             string        `yaml:"cdp_url"`  // WebSocket URL для backend=cdp
	APIKey             string        `yaml:"api_key"`
	Timeout            time.Duration `yaml:"timeout"`
	RateLimit          int           `yaml:"rate_limit"`
	BurstLimit         int           `yaml:"burst_limit"`
	SummarizeThreshold int           `yaml:"summarize_threshold"` // Символов, выше которых текст суммаризируется
}

// AgentConfig параметры цикла агента.
type AgentConfig struct {
	MaxIterations int                      `yaml:"max_iterations"`
	ToolTimeout   time.Duration            `yaml:"tool_timeout"`  // Защитный timeout шага инструмента
	ToolTimeouts  map[string]time.Duration `yaml:"tool_timeouts"` // Переопределения по имени инструмента
	SystemPrompt  string                   `yaml:"system_prompt"` // Пусто = встроенная инструкция
	PromptFile    string                   `yaml:"prompt_file"`   // YAML шаблон инструкции, перекрывает system_prompt
}

// SummarizerConfig параметры map-reduce суммаризатора.
type SummarizerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MaxCallChars int `yaml:"max_call_chars"` // Бюджет одного вызова модели
	MaxDepth     int `yaml:"max_depth"`
}

// MemoryConfig параметры памяти диалога.
type MemoryConfig struct {
	TokenBudget int `yaml:"token_budget"`
}

// ServerConfig HTTP фронт.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
}

// HistoryConfig журнал прогонов в SQLite.
type HistoryConfig struct {
	Path string `yaml:"path"` // Файл базы, пусто = журнал выключен
}

// Enabled сообщает, включён ли журнал.
func (h HistoryConfig) Enabled() bool { return h.Path != "" }

// S3Config S3-совместимое хранилище для архива трасс.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"` // host:port без схемы
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"` // Префикс ключей, например "traces/"
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроен ли архив.
func (s S3Config) Enabled() bool { return s.Endpoint != "" && s.Bucket != "" }

// AppSpecific общие настройки приложения.
type AppSpecific struct {
	Debug     bool   `yaml:"debug"`
	LogsDir   string `yaml:"logs_dir"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`
}

// EnvOverrides переменные окружения, перекрывающие YAML.
//
// Пустые значения не применяются.
type EnvOverrides struct {
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	SerpAPIKey        string `envconfig:"SERP_API_KEY"`
	BrowserlessAPIKey string `envconfig:"BROWSERLESS_API_KEY"`
	S3AccessKey       string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey       string `envconfig:"S3_SECRET_KEY"`
	Port              string `envconfig:"PORT"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
}

// DefaultModelTimeout ограничивает вызов модели, у которой timeout не задан.
const DefaultModelTimeout = 60 * time.Second

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *AppConfig {
	return &AppConfig{
		Models: ModelsConfig{
			DefaultChat: "default",
			Definitions: map[string]ModelDef{
				"default": {
					Provider:    "openai",
					ModelName:   "gpt-4o-mini",
					Temperature: 0,
					Timeout:     DefaultModelTimeout,
				},
			},
		},
		Search: SearchConfig{
			Endpoint:   "https://google.serper.dev/search",
			Timeout:    10 * time.Second,
			RateLimit:  60,
			BurstLimit: 5,
		},
		Scrape: ScrapeConfig{
			Backend:            ScrapeBackendHTTP,
			Endpoint:           "https://chrome.browserless.io/content",
			CDPURL:             "wss://chrome.browserless.io",
			Timeout:            10 * time.Second,
			RateLimit:          60,
			BurstLimit:         5,
			SummarizeThreshold: 10000,
		},
		Agent: AgentConfig{
			MaxIterations: 3,
			ToolTimeout:   2 * time.Minute,
		},
		Summarizer: SummarizerConfig{
			ChunkSize:    10000,
			ChunkOverlap: 500,
			MaxCallChars: 10000,
			MaxDepth:     5,
		},
		Memory: MemoryConfig{
			TokenBudget: 1000,
		},
		Server: ServerConfig{
			Port:            "8080",
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MetricsEnabled:  true,
		},
		App: AppSpecific{
			LogsDir:  "./logs",
			LogLevel: "info",
		},
	}
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Пустой path означает «только defaults + окружение».
func Load(path string) (*AppConfig, error) {
	// .env опционален
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at: %s", path)
		}

		rawBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		contentWithEnv := os.ExpandEnv(string(rawBytes))

		if err := yaml.Unmarshal([]byte(contentWithEnv), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	var env EnvOverrides
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyEnv(env)
	cfg.applyModelDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv накладывает непустые переменные окружения.
//
// OPENAI_API_KEY заполняет только те определения моделей, у которых ключ не задан.
func (c *AppConfig) applyEnv(env EnvOverrides) {
	if env.OpenAIAPIKey != "" {
		for name, def := range c.Models.Definitions {
			if def.APIKey == "" {
				def.APIKey = env.OpenAIAPIKey
				c.Models.Definitions[name] = def
			}
		}
	}
	if env.SerpAPIKey != "" {
		c.Search.APIKey = env.SerpAPIKey
	}
	if env.BrowserlessAPIKey != "" {
		c.Scrape.APIKey = env.BrowserlessAPIKey
	}
	if env.S3AccessKey != "" {
		c.Archive.AccessKey = env.S3AccessKey
	}
	if env.S3SecretKey != "" {
		c.Archive.SecretKey = env.S3SecretKey
	}
	if env.Port != "" {
		c.Server.Port = env.Port
	}
	if env.LogLevel != "" {
		c.App.LogLevel = env.LogLevel
	}
}

// applyModelDefaults заполняет timeout моделей, не заданный в YAML.
func (c *AppConfig) applyModelDefaults() {
	for name, def := range c.Models.Definitions {
		if def.Timeout == 0 {
			def.Timeout = DefaultModelTimeout
			c.Models.Definitions[name] = def
		}
	}
}

// validate проверяет обязательные поля и согласованность лимитов.
func (c *AppConfig) validate() error {
	if c.Models.DefaultChat == "" {
		return fmt.Errorf("models.default_chat is required")
	}
	if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
		return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
	}
	if c.Models.DefaultSummary != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultSummary]; !ok {
			return fmt.Errorf("default_summary model '%s' is not defined in definitions", c.Models.DefaultSummary)
		}
	}
	for name, def := range c.Models.Definitions {
		if def.Timeout <= 0 {
			return fmt.Errorf("models.definitions.%s.timeout must be positive", name)
		}
	}
	if c.Search.Endpoint == "" {
		return fmt.Errorf("search.endpoint is required")
	}
	switch c.Scrape.Backend {
	case ScrapeBackendHTTP:
		if c.Scrape.Endpoint == "" {
			return fmt.Errorf("scrape.endpoint is required for backend %q", ScrapeBackendHTTP)
		}
	case ScrapeBackendCDP:
		if c.Scrape.CDPURL == "" {
			return fmt.Errorf("scrape.cdp_url is required for backend %q", ScrapeBackendCDP)
		}
	default:
		return fmt.Errorf("scrape.backend must be %q or %q, got %q", ScrapeBackendHTTP, ScrapeBackendCDP, c.Scrape.Backend)
	}
	if c.Scrape.SummarizeThreshold <= 0 {
		return fmt.Errorf("scrape.summarize_threshold must be positive")
	}
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1, got %d", c.Agent.MaxIterations)
	}
	if c.Summarizer.ChunkSize <= 0 {
		return fmt.Errorf("summarizer.chunk_size must be positive")
	}
	if c.Summarizer.ChunkOverlap < 0 || c.Summarizer.ChunkOverlap >= c.Summarizer.ChunkSize {
		return fmt.Errorf("summarizer.chunk_overlap must be in [0, chunk_size)")
	}
	if c.Summarizer.MaxCallChars <= 0 {
		return fmt.Errorf("summarizer.max_call_chars must be positive")
	}
	if c.Summarizer.MaxDepth < 1 {
		return fmt.Errorf("summarizer.max_depth must be at least 1")
	}
	if c.Memory.TokenBudget <= 0 {
		return fmt.Errorf("memory.token_budget must be positive")
	}
	if (c.Archive.Endpoint == "") != (c.Archive.Bucket == "") {
		return fmt.Errorf("trace_archive requires both endpoint and bucket")
	}
	return nil
}

// GetChatModel возвращает модель для решений агента.
func (c *AppConfig) GetChatModel() (string, ModelDef) {
	return c.Models.DefaultChat, c.Models.Definitions[c.Models.DefaultChat]
}

// GetSummaryModel возвращает модель для суммаризации с fallback на default_chat.
func (c *AppConfig) GetSummaryModel() (string, ModelDef) {
	name := c.Models.DefaultSummary
	if name == "" {
		name = c.Models.DefaultChat
	}
	return name, c.Models.Definitions[name]
}

// FindConfigPath ищет config.yaml в текущей директории, затем рядом с
// бинарником. Пустая строка означает «работать на defaults + окружении».
func FindConfigPath() string {
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
