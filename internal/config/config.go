package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	DBMaxConns         int    `envconfig:"DB_MAX_CONNS" default:"25"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret   string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	AdminEmails []string      `envconfig:"ADMIN_EMAILS"`

	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"lept-reviewer"`
	S3Region    string `envconfig:"S3_REGION" default:"ap-southeast-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	// Question generator settings. When the API key is empty and a GCP
	// project is configured, the key is resolved from Secret Manager.
	GeneratorBaseURL string        `envconfig:"GENERATOR_BASE_URL" default:"https://api.openai.com/v1"`
	GeneratorAPIKey  string        `envconfig:"GENERATOR_API_KEY"`
	GeneratorModel   string        `envconfig:"GENERATOR_MODEL" default:"gpt-4o-mini"`
	GeneratorTimeout time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"60s"`

	ExtractorBaseURL string        `envconfig:"EXTRACTOR_BASE_URL"`
	ExtractorTimeout time.Duration `envconfig:"EXTRACTOR_TIMEOUT" default:"30s"`

	GCPProjectID           string `envconfig:"GCP_PROJECT_ID"`
	UsageEventTopic        string `envconfig:"USAGE_EVENT_TOPIC" default:"usage-events"`
	GeneratorKeySecretName string `envconfig:"GENERATOR_KEY_SECRET_NAME" default:"lept-generator-api-key"`

	// Plan quotas and durations.
	FreeQuestionLimit   int `envconfig:"FREE_QUESTION_LIMIT" default:"10"`
	ProQuestionBonus    int `envconfig:"PRO_QUESTION_BONUS" default:"50"`
	PremiumQuota        int `envconfig:"PREMIUM_QUOTA" default:"9999"`
	PremiumDurationDays int `envconfig:"PREMIUM_DURATION_DAYS" default:"30"`
	QuestionsPerBatch   int `envconfig:"QUESTIONS_PER_BATCH" default:"5"`

	// Cache TTLs per query kind.
	UserCacheTTL            time.Duration `envconfig:"USER_CACHE_TTL" default:"60s"`
	AdminDocsCacheTTL       time.Duration `envconfig:"ADMIN_DOCS_CACHE_TTL" default:"300s"`
	UserDocsCacheTTL        time.Duration `envconfig:"USER_DOCS_CACHE_TTL" default:"120s"`
	IPBlockCacheTTL         time.Duration `envconfig:"IP_BLOCK_CACHE_TTL" default:"30s"`
	PendingPaymentsCacheTTL time.Duration `envconfig:"PENDING_PAYMENTS_CACHE_TTL" default:"60s"`

	// Bounded listing defaults for audit/usage queries.
	UsageLogPageSize   int `envconfig:"USAGE_LOG_PAGE_SIZE" default:"50"`
	AdminLogPageSize   int `envconfig:"ADMIN_LOG_PAGE_SIZE" default:"100"`
	MaxDocumentTextLen int `envconfig:"MAX_DOCUMENT_TEXT_LEN" default:"12000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PremiumDuration returns the configured premium validity window.
func (c *Config) PremiumDuration() time.Duration {
	return time.Duration(c.PremiumDurationDays) * 24 * time.Hour
}

// IsAdminEmail reports whether the address belongs to an operator.
func (c *Config) IsAdminEmail(email string) bool {
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}
