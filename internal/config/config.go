package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port      int              `json:"port"`
	JWTSecret string           `json:"jwt_secret"`
	LogConfig logger.LogConfig `json:"log_config"`
	Database  DatabaseConfig   `json:"database"`
	Redis     RedisConfig      `json:"redis"`
	AI        AIConfig         `json:"ai"`
	Embedding EmbeddingConfig  `json:"embedding"`
	RAG       RAGConfig        `json:"rag"`
	Documents DocumentsConfig  `json:"documents"`
	FileStore FileStoreConfig  `json:"file_store"`
}

type DatabaseConfig struct {
	DSN                 string `json:"dsn"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AIConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
}

type EmbeddingConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url"`
	// CacheSize of zero leaves query embeddings uncached.
	CacheSize       int `json:"cache_size"`
	CacheTTLMinutes int `json:"cache_ttl_minutes"`
}

type RAGConfig struct {
	ChunkSize      int     `json:"chunk_size"`
	ChunkOverlap   int     `json:"chunk_overlap"`
	TopK           int     `json:"top_k"`
	ScoreThreshold float64 `json:"score_threshold"`

	// zero is a valid setting for both, so track presence separately
	overlapSet   bool
	thresholdSet bool
}

func (c *RAGConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChunkSize      int      `json:"chunk_size"`
		ChunkOverlap   *int     `json:"chunk_overlap"`
		TopK           int      `json:"top_k"`
		ScoreThreshold *float64 `json:"score_threshold"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.ChunkSize = raw.ChunkSize
	c.TopK = raw.TopK
	if raw.ChunkOverlap != nil {
		c.ChunkOverlap = *raw.ChunkOverlap
		c.overlapSet = true
	}
	if raw.ScoreThreshold != nil {
		c.ScoreThreshold = *raw.ScoreThreshold
		c.thresholdSet = true
	}
	return nil
}

type DocumentsConfig struct {
	Dir           string `json:"dir"`
	MaxFileSizeMB int    `json:"max_file_size_mb"`
}

type FileStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
	UseSSL    bool   `json:"use_ssl"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	if cfg.Database.EmbeddingDimensions == 0 {
		cfg.Database.EmbeddingDimensions = 768
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.AI.Provider
	}
	if cfg.Embedding.CacheSize > 0 && cfg.Embedding.CacheTTLMinutes == 0 {
		cfg.Embedding.CacheTTLMinutes = 30
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if !cfg.RAG.overlapSet {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return nil, fmt.Errorf("rag.chunk_overlap must be in [0, rag.chunk_size)")
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if !cfg.RAG.thresholdSet {
		cfg.RAG.ScoreThreshold = 0.7
	}
	if cfg.RAG.ScoreThreshold < 0 || cfg.RAG.ScoreThreshold > 1 {
		return nil, fmt.Errorf("rag.score_threshold must be in [0, 1]")
	}
	if cfg.Documents.Dir == "" {
		cfg.Documents.Dir = "./docs"
	}
	if cfg.Documents.MaxFileSizeMB == 0 {
		cfg.Documents.MaxFileSizeMB = 20
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
		if cfg.FileStore.Dir == "" {
			cfg.FileStore.Dir = cfg.Documents.Dir
		}
	}
	switch cfg.FileStore.Type {
	case "local":
		if cfg.FileStore.Dir == "" {
			return nil, fmt.Errorf("file_store.dir is required for local store")
		}
	case "s3":
		if cfg.FileStore.S3.Endpoint == "" || cfg.FileStore.S3.Bucket == "" || cfg.FileStore.S3.SecretID == "" || cfg.FileStore.S3.SecretKey == "" {
			return nil, fmt.Errorf("file_store.s3 endpoint/bucket/secret_id/secret_key are required for s3 store")
		}
	default:
		return nil, fmt.Errorf("file_store.type must be local or s3")
	}
	return &cfg, nil
}
