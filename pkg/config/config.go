package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Search  SearchConfig
	Index   IndexConfig
	Storage StorageConfig
	Redis   RedisConfig
	Chat    ChatConfig
	Workers WorkersConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	MaxQuestionLen int
	Development    bool
}

type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type SearchConfig struct {
	SerpAPIKey  string
	Endpoint    string
	Engine      string
	MaxResults  int
	TimeoutSec  int
	CacheTTLSec int
}

type IndexConfig struct {
	Enabled        bool
	DocumentPath   string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	Embedder       string
	EmbeddingModel string
	EmbeddingURL   string
	EmbeddingKey   string
	LoadAttempts   int
}

type StorageConfig struct {
	Driver      string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
	Table       string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type ChatConfig struct {
	SearchKeyword   string
	ContextKeyword  string
	DocumentContext bool
}

type WorkersConfig struct {
	MaxInFlight int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads .env (if any), an optional config.yaml and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/stockwizard")

	v.SetEnvPrefix("STOCKWIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Storage.Driver == "" {
		config.Storage.Driver = "sqlite"
		if config.Storage.SupabaseURL != "" && config.Storage.SupabaseKey != "" {
			config.Storage.Driver = "supabase"
		}
	}

	return &config, nil
}

// bindLegacyEnv keeps the variable names the service was first deployed with.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"search.serpAPIKey":   "SERPAPIKEY",
		"storage.supabaseURL": "SUPABASE_URL",
		"storage.supabaseKey": "SUPABASE_KEY",
		"server.port":         "PORT",
	}
	for key, env := range legacy {
		if err := v.BindEnv(key, "STOCKWIZARD_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 180)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.maxQuestionLen", 5000)
	v.SetDefault("server.development", false)

	v.SetDefault("llm.baseURL", "http://localhost:11434/v1")
	v.SetDefault("llm.apiKey", "ollama")
	v.SetDefault("llm.model", "llama3.2:1b")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.maxTokens", 512)
	v.SetDefault("llm.timeoutSec", 120)

	v.SetDefault("search.endpoint", "https://serpapi.com/search.json")
	v.SetDefault("search.engine", "google")
	v.SetDefault("search.maxResults", 7)
	v.SetDefault("search.timeoutSec", 15)
	v.SetDefault("search.cacheTTLSec", 600)

	v.SetDefault("index.enabled", true)
	v.SetDefault("index.documentPath", "./data/stockwise.md")
	v.SetDefault("index.collectionName", "stockwise")
	v.SetDefault("index.chunkSize", 1000)
	v.SetDefault("index.chunkOverlap", 1)
	v.SetDefault("index.topK", 2)
	v.SetDefault("index.embedder", "ollama")
	v.SetDefault("index.embeddingModel", "nomic-embed-text")
	v.SetDefault("index.embeddingURL", "http://localhost:11434/api")
	v.SetDefault("index.embeddingKey", "")
	v.SetDefault("index.loadAttempts", 3)

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.sqlitePath", "./data/chat.db")
	v.SetDefault("storage.table", "chat")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("chat.searchKeyword", "pesquise")
	v.SetDefault("chat.contextKeyword", "stockwise")
	v.SetDefault("chat.documentContext", true)

	v.SetDefault("workers.maxInFlight", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
