package config

import (
	"fmt"
	"os"
	"strconv"
)

// minJWTSecretBytes はHS256署名鍵の最小バイト数。
const minJWTSecretBytes = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session token (JWT)
	JWTSecret            string
	JWTIssuer            string
	JWTExpirationSeconds int

	// Google ID token verification
	GoogleClientID string // 空の場合はaudience検証をスキップ
	GoogleIssuer   string
	GoogleJWKSURI  string

	// Events
	RedisURL string // 空の場合はイベント発行を無効化

	// Rate Limit
	RateLimitGeneral int
	RateLimitWriteOp int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定または不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < minJWTSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minJWTSecretBytes, len(cfg.JWTSecret))
	}

	// Optional fields with defaults
	cfg.JWTIssuer = getEnvString("JWT_ISSUER", "bukuma")
	cfg.JWTExpirationSeconds = getEnvInt("JWT_EXPIRATION_SECONDS", 3600)
	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleIssuer = getEnvString("GOOGLE_ISSUER", "https://accounts.google.com")
	cfg.GoogleJWKSURI = getEnvString("GOOGLE_JWKS_URI", "https://www.googleapis.com/oauth2/v3/certs")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWriteOp = getEnvInt("RATE_LIMIT_WRITE_OP", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.JWTExpirationSeconds <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRATION_SECONDS must be positive, got %d", cfg.JWTExpirationSeconds)
	}

	return cfg, nil
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
