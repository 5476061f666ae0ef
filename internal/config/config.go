package config

import (
	"log"
	"time"

	"selfie-mailer/internal/utils"
)

const devSessionSecret = "secret"

type Config struct {
	Port           string
	BaseURL        string
	SessionSecret  string
	SessionTTL     time.Duration
	MaxBodyBytes   int
	AdminEmails    []string
	SenderEmail    string
	GoogleClientID string
	GoogleSecret   string

	AWSRegion      string
	AWSAccessKeyID string
	AWSSecretKey   string
	S3Bucket       string
	S3Endpoint     string
	UploadDir      string

	RecordStore string
	DatabaseURL string

	OpenAIKey        string
	OpenAIModel      string
	OpenAIBaseURL    string
	CaptionMaxTokens int
}

// Load reads the configuration from the environment, after .env if present
func Load() Config {
	if err := utils.LoadEnv(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := Config{
		Port:           utils.GetEnv("PORT", "3001"),
		BaseURL:        utils.GetEnv("BASE_URL", ""),
		SessionSecret:  utils.GetEnv("SESSION_SECRET", devSessionSecret),
		SessionTTL:     time.Duration(utils.GetEnvInt("SESSION_TTL_HOURS", 72)) * time.Hour,
		MaxBodyBytes:   utils.GetEnvInt("MAX_BODY_BYTES", 15<<20),
		AdminEmails:    utils.GetEnvList("ADMIN_EMAILS"),
		SenderEmail:    utils.GetEnv("SENDER_EMAIL", ""),
		GoogleClientID: utils.GetEnv("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:   utils.GetEnv("GOOGLE_CLIENT_SECRET", ""),

		AWSRegion:      utils.GetEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID: utils.GetEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   utils.GetEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:       utils.GetEnv("AWS_S3_BUCKET_NAME", ""),
		S3Endpoint:     utils.GetEnv("AWS_S3_ENDPOINT", ""),
		UploadDir:      utils.GetEnv("UPLOAD_DIR", "uploads"),

		RecordStore: utils.GetEnv("RECORD_STORE", "document"),
		DatabaseURL: databaseURL(),

		OpenAIKey:        utils.GetEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    utils.GetEnv("OPENAI_BASE_URL", ""),
		CaptionMaxTokens: utils.GetEnvInt("CAPTION_MAX_TOKENS", 100),
	}
	if cfg.SessionSecret == devSessionSecret {
		log.Println("WARNING: using development session secret; set SESSION_SECRET")
	}
	return cfg
}

// UsesS3 reports whether captures go to a bucket rather than UploadDir
func (c Config) UsesS3() bool {
	return c.S3Bucket != ""
}

func (c Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleSecret != ""
}

func databaseURL() string {
	connString := utils.GetEnv("DATABASE_URL", "")
	if connString != "" {
		return connString
	}
	// Fallback to individual vars
	return "postgres://" + utils.GetEnv("POSTGRES_USER", "postgres") + ":" +
		utils.GetEnv("POSTGRES_PASSWORD", "postgres") + "@" +
		utils.GetEnv("POSTGRES_HOST", "localhost") + ":" +
		utils.GetEnv("POSTGRES_PORT", "5432") + "/" +
		utils.GetEnv("POSTGRES_DB", "selfiedb") + "?sslmode=disable"
}
