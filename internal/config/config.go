package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port         int              `json:"port"`
	JWTSecret    string           `json:"jwt_secret"`
	CORSOrigins  []string         `json:"cors_origins"`
	LogConfig    logger.LogConfig `json:"log_config"`
	Database     DatabaseConfig   `json:"database"`
	BlobStore    BlobStoreConfig  `json:"blob_store"`
	AI           AIConfig         `json:"ai"`
	Ingest       IngestConfig     `json:"ingest"`
	Retrieval    RetrievalConfig  `json:"retrieval"`
	ChatTimeoutS int              `json:"chat_timeout_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	// MaxOpenConns bounds the shared pool; ingest workers and chat queries
	// compete for it. Zero leaves the driver default (unlimited).
	MaxOpenConns int `json:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns"`
}

type BlobStoreConfig struct {
	Type string   `json:"type"`
	Dir  string   `json:"dir"`
	S3   S3Config `json:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	PathStyle bool   `json:"path_style"`
}

type AIConfig struct {
	Embedding  EmbeddingConfig             `json:"embedding"`
	Generation map[string]GenerationConfig `json:"generation"`
}

// EmbeddingConfig selects the single embedding provider shared by the
// ingestion and retrieval paths. Dimension must match the model's output;
// a mismatch against an existing index is a fatal configuration error.
type EmbeddingConfig struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Dimension int         `json:"dimension"`
	Args      interface{} `json:"args"`
}

// GenerationConfig holds per-family provider credentials; the family a chat
// turn uses is selected by the chatbot record, not by this config.
type GenerationConfig struct {
	Args interface{} `json:"args"`
}

type IngestConfig struct {
	Workers         int    `json:"workers"`
	ChunkWorkers    int    `json:"chunk_workers"`
	MaxChunkChars   int    `json:"max_chunk_chars"`
	OverlapChars    int    `json:"overlap_chars"`
	DownloadRetries int    `json:"download_retries"`
	ChunkRetries    int    `json:"chunk_retries"`
	SweepSpec       string `json:"sweep_spec"`
	StaleAfterS     int    `json:"stale_after_seconds"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k"`
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
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.BlobStore.Type == "" {
		cfg.BlobStore.Type = "local"
	}
	switch cfg.BlobStore.Type {
	case "local":
		if cfg.BlobStore.Dir == "" {
			return nil, fmt.Errorf("blob_store.dir is required for local store")
		}
	case "s3":
		s3 := cfg.BlobStore.S3
		if s3.Bucket == "" || s3.Region == "" {
			return nil, fmt.Errorf("blob_store.s3 bucket/region are required for s3 store")
		}
	default:
		return nil, fmt.Errorf("blob_store.type must be local or s3")
	}
	if cfg.AI.Embedding.Provider == "" || cfg.AI.Embedding.Model == "" {
		return nil, fmt.Errorf("ai.embedding provider/model are required")
	}
	if cfg.AI.Embedding.Dimension <= 0 {
		return nil, fmt.Errorf("ai.embedding.dimension must be positive")
	}
	applyIngestDefaults(&cfg.Ingest)
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.ChatTimeoutS <= 0 {
		cfg.ChatTimeoutS = 30
	}
	return &cfg, nil
}

func applyIngestDefaults(ic *IngestConfig) {
	if ic.Workers <= 0 {
		ic.Workers = 4
	}
	if ic.ChunkWorkers <= 0 {
		ic.ChunkWorkers = 4
	}
	if ic.MaxChunkChars <= 0 {
		ic.MaxChunkChars = 2000
	}
	if ic.OverlapChars < 0 {
		ic.OverlapChars = 0
	}
	if ic.DownloadRetries <= 0 {
		ic.DownloadRetries = 3
	}
	if ic.ChunkRetries <= 0 {
		ic.ChunkRetries = 3
	}
	if ic.SweepSpec == "" {
		ic.SweepSpec = "*/5 * * * *"
	}
	if ic.StaleAfterS <= 0 {
		ic.StaleAfterS = 900
	}
}
