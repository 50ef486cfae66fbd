package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        string
	DatabaseURL string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	BlobFolder   string

	AIAPIKey   string
	EmbedModel string
	EmbedDim   int
	GenModel   string

	ChunkSize       int
	ChunkOverlap    int
	EmbedTokenLimit int
	EmbedBatchSize  int

	OCRTextThreshold int
	OCRDPI           int

	MatchCount     int
	FullTextWeight float64
	SemanticWeight float64
	RRFK           int

	MaxUploadBytes     int64
	UploadSessionTTL   time.Duration
	UploadReapInterval time.Duration
	IngestStageTimeout time.Duration
}

// LoadConfig loads the environment variables and returns config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "lectern-docs"),
		BlobFolder:   getEnv("BLOB_FOLDER", "uploaded_docs"),

		AIAPIKey:   getEnv("GEMINI_API_KEY", ""),
		EmbedModel: getEnv("EMBED_MODEL", "embedding-001"),
		EmbedDim:   getEnvInt("EMBED_DIM", 768),
		GenModel:   getEnv("GEN_MODEL", "gemini-1.5-pro"),

		ChunkSize:       getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 200),
		EmbedTokenLimit: getEnvInt("EMBED_TOKEN_LIMIT", 8000),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH", 20),

		OCRTextThreshold: getEnvInt("OCR_TEXT_THRESHOLD", 20),
		OCRDPI:           getEnvInt("OCR_DPI", 300),

		MatchCount:     getEnvInt("MATCH_COUNT", 10),
		FullTextWeight: getEnvFloat("FULL_TEXT_WEIGHT", 1.0),
		SemanticWeight: getEnvFloat("SEMANTIC_WEIGHT", 1.0),
		RRFK:           getEnvInt("RRF_K", 50),

		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		UploadSessionTTL:   getEnvDuration("UPLOAD_SESSION_TTL", time.Hour),
		UploadReapInterval: getEnvDuration("UPLOAD_REAP_INTERVAL", 15*time.Minute),
		IngestStageTimeout: getEnvDuration("INGEST_STAGE_TIMEOUT", 5*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL not set")
	}
	if cfg.AIAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("not an int, using default")
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("not a float, using default")
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Dur("default", def).Msg("not a duration, using default")
		return def
	}
	return d
}
