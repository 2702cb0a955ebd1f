package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	Port string

	// Shared secret checked against the "auth" header on admin routes.
	// AuthKeyHash, when set, is a bcrypt hash and takes precedence.
	AuthKey     string
	AuthKeyHash string

	AudioDir      string // Directory holding track payloads (*.json)
	BackgroundDir string // Directory holding background images
	SaveDataDir   string // Directory for the file-backed sync store

	CatalogBackend string // dir | minio
	SyncBackend    string // file | redis

	TickInterval    time.Duration
	StopTimeout     time.Duration
	PublishTimeout  time.Duration
	PublishRetry    time.Duration
	SnapshotModulus int64

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisKeyTTL   time.Duration

	// MinIO
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPrefix    string

	// Play history (MySQL via GORM)
	HistoryEnabled bool
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("1s", "250ms").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		AuthKey:     os.Getenv("AUTH_KEY"),
		AuthKeyHash: os.Getenv("AUTH_KEY_HASH"),

		AudioDir:      getEnv("AUDIO_DIR", "audios"),
		BackgroundDir: getEnv("BACKGROUND_DIR", "static/images/background"),
		SaveDataDir:   getEnv("SAVE_DATA_DIR", "save-data"),

		CatalogBackend: getEnv("CATALOG_BACKEND", "dir"),
		SyncBackend:    getEnv("SYNC_BACKEND", "file"),

		TickInterval:    getEnvDuration("TICK_INTERVAL", time.Second),
		StopTimeout:     getEnvDuration("STOP_TIMEOUT", 2*time.Second),
		PublishTimeout:  getEnvDuration("PUBLISH_TIMEOUT", 500*time.Millisecond),
		PublishRetry:    getEnvDuration("PUBLISH_RETRY", time.Second),
		SnapshotModulus: int64(getEnvInt("SNAPSHOT_MODULUS", 100000)),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisKeyTTL:   getEnvDuration("REDIS_KEY_TTL", 24*time.Hour),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "liveradio"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioPrefix:    getEnv("MINIO_PREFIX", "audios/"),

		HistoryEnabled: getEnvBool("HISTORY_ENABLED", false),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // For password, better not to have a hardcoded default
		DBName:         getEnv("DB_NAME", "liveradio"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
