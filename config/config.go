// Package config reads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"family-album/embedding"
)

// Config is the full process configuration. Every client handle is built
// from it explicitly at startup; nothing reads the environment after Load.
type Config struct {
	Addr string

	MongoURI      string
	MongoDatabase string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	VectorDir       string
	VectorDimension int
	ScoreThreshold  float32

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string

	SignTTL       time.Duration
	DeleteWorkers int
}

// Load reads configuration from the environment. A missing .env file is
// fine; explicit environment variables always win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Addr: getenv("ADDR", ":8080"),

		MongoURI:      getenv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getenv("MONGODB_DATABASE", "family_album"),

		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "family-album"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),

		VectorDir:       getenv("VECTOR_DIR", "./.vectors"),
		VectorDimension: getenvInt("VECTOR_DIMENSION", embedding.Dimension),
		ScoreThreshold:  getenvFloat("SCORE_THRESHOLD", 0.2),

		OpenAIAPIKey:   getenv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getenv("OPENAI_BASE_URL", ""),
		EmbeddingModel: getenv("EMBEDDING_MODEL", ""),

		SignTTL:       getenvDuration("SIGN_TTL", time.Hour),
		DeleteWorkers: getenvInt("DELETE_WORKERS", 4),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
