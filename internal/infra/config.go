package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	StoreDriver string
	DatabaseURL string
	DBMaxConns  int
	AutoMigrate bool
	JWTSecret   string
	CORSOrigins []string

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	S3Bucket        string
	S3Region        string
	S3PublicBaseURL string
	CacheNamespace  string

	TextProvider     string
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string
	GeminiBaseURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	OpenAIOrg        string
	ElevenLabsAPIKey string
	ElevenLabsURL    string
	ElevenLabsModel  string
	DefaultVoiceID   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	GeoIPPath        string

	Pipeline PipelineConfig
}

// PipelineConfig tunes stage pacing, credit costs and the job queue. It can
// be overlaid from the YAML file named by PIPELINE_CONFIG.
type PipelineConfig struct {
	FanOutLimit       int            `yaml:"fan_out_limit"`
	ProviderRate      float64        `yaml:"provider_rate_per_second"`
	ProviderBurst     int            `yaml:"provider_burst"`
	GeneratingTimeout time.Duration  `yaml:"generating_timeout"`
	ReconcileInterval time.Duration  `yaml:"reconcile_interval"`
	Costs             map[string]int `yaml:"costs"`
	Workers           int            `yaml:"workers"`
	LeaseDuration     time.Duration  `yaml:"lease_duration"`
	PollInterval      time.Duration  `yaml:"poll_interval"`
	MaxAttempts       int            `yaml:"max_attempts"`
	RetryBackoff      time.Duration  `yaml:"retry_backoff"`
}

// Cost returns the credit cost of a unit kind; unknown kinds are free.
func (p PipelineConfig) Cost(kind string) int {
	if p.Costs == nil {
		return 0
	}
	return p.Costs[kind]
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		StorageDriver:   strings.ToLower(getEnv("STORAGE_DRIVER", "filesystem")),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		CacheNamespace:  getEnv("CACHE_NAMESPACE", "storyboards"),

		TextProvider:     strings.ToLower(getEnv("TEXT_PROVIDER", "gemini")),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsURL:    getEnv("ELEVENLABS_API_URL", "https://api.elevenlabs.io/v1/text-to-speech"),
		ElevenLabsModel:  getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		DefaultVoiceID:   getEnv("ELEVENLABS_DEFAULT_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		GeoIPPath:        os.Getenv("GEOIP_DB_PATH"),

		Pipeline: PipelineConfig{
			FanOutLimit:       getEnvInt("PIPELINE_FAN_OUT", 4),
			ProviderRate:      getEnvFloat("PROVIDER_RATE_PER_SECOND", 2),
			ProviderBurst:     getEnvInt("PROVIDER_BURST", 4),
			GeneratingTimeout: getEnvDuration("GENERATING_TIMEOUT", 10*time.Minute),
			ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Minute),
			Costs: map[string]int{
				"character_image": 1,
				"shot_image":      1,
				"shot_audio":      1,
			},
			Workers:       getEnvInt("WORKER_COUNT", 2),
			LeaseDuration: getEnvDuration("JOB_LEASE", 5*time.Minute),
			PollInterval:  getEnvDuration("JOB_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:   getEnvInt("JOB_MAX_ATTEMPTS", 3),
			RetryBackoff:  getEnvDuration("JOB_RETRY_BACKOFF", 10*time.Second),
		},
	}

	if path := strings.TrimSpace(os.Getenv("PIPELINE_CONFIG")); path != "" {
		if err := cfg.Pipeline.overlayFile(path); err != nil {
			return nil, err
		}
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	switch cfg.StorageDriver {
	case "filesystem":
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func (p *PipelineConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline config: %w", err)
	}
	var file PipelineConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse pipeline config: %w", err)
	}
	if file.FanOutLimit > 0 {
		p.FanOutLimit = file.FanOutLimit
	}
	if file.ProviderRate > 0 {
		p.ProviderRate = file.ProviderRate
	}
	if file.ProviderBurst > 0 {
		p.ProviderBurst = file.ProviderBurst
	}
	if file.GeneratingTimeout > 0 {
		p.GeneratingTimeout = file.GeneratingTimeout
	}
	if file.ReconcileInterval > 0 {
		p.ReconcileInterval = file.ReconcileInterval
	}
	for kind, cost := range file.Costs {
		if cost < 0 {
			return fmt.Errorf("pipeline config: negative cost for %s", kind)
		}
		p.Costs[kind] = cost
	}
	if file.Workers > 0 {
		p.Workers = file.Workers
	}
	if file.LeaseDuration > 0 {
		p.LeaseDuration = file.LeaseDuration
	}
	if file.PollInterval > 0 {
		p.PollInterval = file.PollInterval
	}
	if file.MaxAttempts > 0 {
		p.MaxAttempts = file.MaxAttempts
	}
	if file.RetryBackoff > 0 {
		p.RetryBackoff = file.RetryBackoff
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
