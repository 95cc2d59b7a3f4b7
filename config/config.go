package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerAddr string

	Postgres struct {
		Host   string
		Port   int
		User   string
		Pass   string
		DBName string
	}

	Storage struct {
		Endpoint  string
		AccessKey string
		SecretKey string
		Bucket    string
		UseSSL    bool
	}

	Embedding struct {
		URL       string // ollama embeddings endpoint
		Model     string
		Dimension int
		Timeout   time.Duration
	}

	LLM struct {
		URL     string
		Model   string
		Timeout time.Duration
	}

	Auth struct {
		JWTSecret string
	}

	Chunking struct {
		ChunkSize    int
		ChunkOverlap int
	}

	MaxUploadSize int64
	PresignTTL    time.Duration
}

// Load reads configuration from the environment and applies defaults.
// godotenv is expected to have populated the environment already.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerAddr = envOr("SERVER_ADDR", ":8080")

	cfg.Postgres.Host = envOr("PG_HOST", "localhost")
	cfg.Postgres.Port = envIntOr("PG_PORT", 5432)
	cfg.Postgres.User = os.Getenv("PG_USER")
	cfg.Postgres.Pass = os.Getenv("PG_PASS")
	cfg.Postgres.DBName = envOr("PG_DB_NAME", "docvault")

	cfg.Storage.Endpoint = envOr("S3_ENDPOINT", "localhost:9000")
	cfg.Storage.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.Storage.Bucket = envOr("S3_BUCKET", "documents")
	cfg.Storage.UseSSL = envBoolOr("S3_USE_SSL", false)

	cfg.Embedding.URL = envOr("OLLAMA_EMBEDDING_URL", "http://localhost:11434/api/embed")
	cfg.Embedding.Model = envOr("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text")
	cfg.Embedding.Dimension = envIntOr("EMBEDDING_DIM", 768)
	cfg.Embedding.Timeout = envDurationOr("EMBEDDING_TIMEOUT", 30*time.Second)

	cfg.LLM.URL = envOr("LLM_URL", "http://localhost:11434/api/generate")
	cfg.LLM.Model = envOr("LLM_MODEL", "llama3")
	cfg.LLM.Timeout = envDurationOr("LLM_TIMEOUT", 60*time.Second)

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.Chunking.ChunkSize = envIntOr("CHUNK_SIZE", 500)
	cfg.Chunking.ChunkOverlap = envIntOr("CHUNK_OVERLAP", 50)

	cfg.MaxUploadSize = int64(envIntOr("MAX_UPLOAD_SIZE", 104857600)) // 100MB
	cfg.PresignTTL = envDurationOr("PRESIGN_TTL", time.Hour)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Chunking.ChunkSize < 1 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	// An overlap >= size would make the chunker stall; reject it outright.
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("config: chunk_overlap must be in [0, chunk_size), got %d", c.Chunking.ChunkOverlap)
	}
	if c.Embedding.Dimension < 1 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("config: max upload size must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	return nil
}

// PostgresDSN builds the pgx connection string the way the store expects it.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Pass, c.Postgres.DBName)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
