package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix of every key. Each key can also be given without it, e.g.
// COUPON_GEMINI_API_KEY or GEMINI_API_KEY.
const Prefix = "coupon"

type Config struct {
	Port string `envconfig:"PORT" default:"8000"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	YCOAuthToken string `envconfig:"YC_OAUTH_TOKEN"`
	YCFolderID   string `envconfig:"YC_FOLDER_ID"`

	// Models is the ordered candidate list; earlier entries are preferred.
	// A bare name is a Gemini model; "openai:<model>", "yandex[:<model>]" and
	// "tesseract" select the other backends.
	Models []string `envconfig:"VERIFY_MODELS" default:"gemini-flash-latest,gemini-2.0-flash-lite-preview-02-05,gemini-2.0-flash-lite,gemini-2.0-flash,gemini-2.5-flash"`

	Backoff        time.Duration `envconfig:"VERIFY_BACKOFF" default:"1s"`
	BackendTimeout time.Duration `envconfig:"VERIFY_BACKEND_TIMEOUT" default:"30s"`
	RequestTimeout time.Duration `envconfig:"VERIFY_REQUEST_TIMEOUT" default:"90s"`

	TesseractLanguages []string `envconfig:"TESSERACT_LANGUAGES" default:"eng"`
	YandexLanguages    []string `envconfig:"YANDEX_OCR_LANGUAGES" default:"en"`
	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`

	// DatabaseURL enables coupon lookups and the verification log. Optional.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	WebhookURL       string `envconfig:"WEBHOOK_URL"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.Models = trimAll(cfg.Models)
	cfg.TesseractLanguages = trimAll(cfg.TesseractLanguages)
	cfg.YandexLanguages = trimAll(cfg.YandexLanguages)
	return &cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Port
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
