package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンド名
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// DefaultJWTSecret は JWT_SECRET 未設定時の署名鍵。開発専用。
const DefaultJWTSecret = "capacita-insecure-dev-secret"

// DefaultCoursePages は講座を掲載できるページの既定値。
var DefaultCoursePages = []string{
	"empreend.html",
	"primeiroemprego.html",
	"novoemp.html",
	"financ.html",
	"habitos.html",
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	AppEnv     string
	LogLevel   string

	// Auth
	JWTSecret      string
	InsecureSecret bool
	TokenTTL       time.Duration
	BcryptCost     int

	// Storage
	StorageBackend string
	DataDir        string
	RedisURL       string
	DatabaseURL    string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3Prefix       string

	// HTTP
	CORSAllowedOrigins []string
	AdminAPIKey        string
	CSRFEnabled        bool

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitAuth    int

	// Courses
	CoursePages   []string
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Worker
	ReconcileInterval time.Duration
}

// Load は環境変数からConfigを読み込む。
// 選択したストレージバックエンドに必要な環境変数が未設定の場合は、不足分をまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", getEnvString("PORT", "3300"))
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DefaultJWTSecret
		cfg.InsecureSecret = true
	}
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 7*24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", BackendFile))
	cfg.DataDir = getEnvString("DATA_DIR", "./data")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.S3Prefix = os.Getenv("S3_PREFIX")

	// Required fields
	var missing []string
	switch cfg.StorageBackend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendS3:
		if cfg.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
			missing = append(missing, "S3_ACCESS_KEY/S3_SECRET_KEY")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want file, memory, redis, postgres or s3)", cfg.StorageBackend)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set for %s backend: %v", cfg.StorageBackend, missing)
	}

	// Optional fields with defaults
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"})
	cfg.AdminAPIKey = os.Getenv("ADMIN_API_KEY")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.CoursePages = DefaultCoursePages
	if v, ok := os.LookupEnv("COURSE_PAGES"); ok {
		// 空文字列はページ制限なし
		cfg.CoursePages = splitList(v)
	}
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5<<20)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute)

	return cfg, nil
}

// IsProduction は本番環境かどうかを返す。本番ではCookieに Secure を付ける。
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvList(key string, defaultVal []string) []string {
	list := splitList(os.Getenv(key))
	if len(list) == 0 {
		return defaultVal
	}
	return list
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
