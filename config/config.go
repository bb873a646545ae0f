package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server     ServerConfig
	Gateway    GatewayConfig
	Store      StoreConfig
	Transcribe TranscribeConfig
}

// ServerConfig holds the transcription endpoint server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	MaxUploadMB        int    // largest audio body accepted by the endpoint
}

// GatewayConfig holds the daemon's WebSocket listener settings.
type GatewayConfig struct {
	Port string
}

// StoreConfig holds object store credentials and bucket settings.
// Endpoint is optional; empty derives the account-scoped endpoint.
type StoreConfig struct {
	AccountID            string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	Endpoint             string
	PresignExpireMinutes int
}

// TranscribeConfig holds transcription round-trip settings. ServerURL is the
// endpoint server the daemon posts audio to; empty disables transcription.
type TranscribeConfig struct {
	ServerURL      string
	Provider       string // "openai" or "cloudflare"
	APIKey         string // OpenAI API key or Cloudflare API token
	AccountID      string // Cloudflare account for Workers AI
	Model          string // empty = provider default
	TimeoutSeconds int
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 25),
		},
		Gateway: GatewayConfig{
			Port: getEnv("DAEMON_PORT", "8090"),
		},
		Store: StoreConfig{
			AccountID:            getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:          getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:               getEnv("R2_BUCKET_NAME", ""),
			Endpoint:             getEnv("R2_ENDPOINT", ""),
			PresignExpireMinutes: getEnvInt("R2_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Transcribe: TranscribeConfig{
			ServerURL:      getEnv("TRANSCRIPTION_SERVER_URL", "http://localhost:8080"),
			Provider:       getEnv("TRANSCRIBE_PROVIDER", "openai"),
			APIKey:         getEnv("TRANSCRIBE_API_KEY", ""),
			AccountID:      getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			Model:          getEnv("TRANSCRIBE_MODEL", ""),
			TimeoutSeconds: getEnvInt("TRANSCRIBE_TIMEOUT_SEC", 300),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
