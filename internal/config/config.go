// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config mirrors the structure of config.yaml.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Processing ProcessingConfig `mapstructure:"processing"`
	VectorDB   VectorDBConfig   `mapstructure:"vector_db"`
	RAG        RAGConfig        `mapstructure:"rag"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Security   SecurityConfig   `mapstructure:"security"`
}

// DataConfig locates the scraper handoff files.
type DataConfig struct {
	RawDir        string `mapstructure:"raw_dir"`
	ProcessedFile string `mapstructure:"processed_file"`
}

// ProcessingConfig controls document chunking.
type ProcessingConfig struct {
	ChunkSize      int  `mapstructure:"chunk_size"`
	ChunkOverlap   int  `mapstructure:"chunk_overlap"`
	MinChunkSize   int  `mapstructure:"min_chunk_size"`
	PreserveTables bool `mapstructure:"preserve_tables"`
	PreserveLists  bool `mapstructure:"preserve_lists"`
}

// VectorDBConfig configures the Qdrant collection and embedding model.
type VectorDBConfig struct {
	EmbeddingModel   string `mapstructure:"embedding_model"`
	PersistDirectory string `mapstructure:"persist_directory"`
	CollectionName   string `mapstructure:"collection_name"`
	BatchSize        int    `mapstructure:"batch_size"`
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
}

// RAGConfig controls retrieval behaviour.
type RAGConfig struct {
	TopK                int     `mapstructure:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MaxContextLength    int     `mapstructure:"max_context_length"`
}

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Model             string  `mapstructure:"model"`
	BaseURL           string  `mapstructure:"base_url"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	MaxResponseTokens int     `mapstructure:"max_response_tokens"`
	SystemPrompt      string  `mapstructure:"system_prompt"`
}

// SecurityConfig holds the query-time security toggles.
type SecurityConfig struct {
	RateLimitInterval     float64 `mapstructure:"rate_limit_interval"`
	QueryLogFile          string  `mapstructure:"query_log_file"`
	EnableInputValidation bool    `mapstructure:"enable_input_validation"`
	EnableRateLimiting    bool    `mapstructure:"enable_rate_limiting"`
	EnableQueryLogging    bool    `mapstructure:"enable_query_logging"`
}

const defaultSystemPrompt = "You are a helpful assistant that answers questions about the knowledge base. " +
	"Answer only from the provided context. If the context does not contain the answer, say so."

// Load reads the config file at path and unmarshals it over the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.processed_file", "data/processed/chunks.jsonl")

	v.SetDefault("processing.chunk_size", 1000)
	v.SetDefault("processing.chunk_overlap", 200)
	v.SetDefault("processing.min_chunk_size", 100)
	v.SetDefault("processing.preserve_tables", true)
	v.SetDefault("processing.preserve_lists", true)

	v.SetDefault("vector_db.embedding_model", "nomic-embed-text")
	v.SetDefault("vector_db.persist_directory", "data/vector_db")
	v.SetDefault("vector_db.collection_name", "wiki_pages")
	v.SetDefault("vector_db.batch_size", 100)
	v.SetDefault("vector_db.host", "localhost")
	v.SetDefault("vector_db.port", 6334)

	v.SetDefault("rag.top_k", 5)
	v.SetDefault("rag.similarity_threshold", 0.3)
	v.SetDefault("rag.max_context_length", 4000)

	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.max_response_tokens", 1000)
	v.SetDefault("llm.system_prompt", defaultSystemPrompt)

	v.SetDefault("security.rate_limit_interval", 2.0)
	v.SetDefault("security.query_log_file", "logs/query_log.jsonl")
	v.SetDefault("security.enable_input_validation", true)
	v.SetDefault("security.enable_rate_limiting", true)
	v.SetDefault("security.enable_query_logging", true)
}
