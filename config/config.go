package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"linkreach/models"
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// ProviderConfig holds credentials for one external HTTP API.
type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`
}

// PipelineConfig carries the operational knobs for the outreach pipeline.
// Loaded once and passed down; components never read the environment.
type PipelineConfig struct {
	MaxBatchSize        int           `json:"max_batch_size"`
	MaxAttempts         int           `json:"max_attempts"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay"`
	RetryMaxDelay       time.Duration `json:"retry_max_delay"`
	MonitorGraceDays    int           `json:"monitor_grace_days"`
	RunBudget           time.Duration `json:"run_budget"`
	LockPath            string        `json:"lock_path"`
	LockStaleAfter      time.Duration `json:"lock_stale_after"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	SenderCooldown      time.Duration `json:"sender_cooldown"`
	RotationMode        string        `json:"rotation_mode"` // sequential, random, balanced
	MinAuthorityScore   float64       `json:"min_authority_score"`
	CleanupAfterDays    int           `json:"cleanup_after_days"`

	// In-process worker; disable when an external cron drives the cycle.
	WorkerEnabled  bool          `json:"worker_enabled"`
	WorkerInterval time.Duration `json:"worker_interval"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	EncryptionKey string `json:"-"`
	APIKey        string `json:"-"` // operator key exchanged for a JWT
	JWTSecret     string `json:"-"`

	SentryDSN string `json:"-"`

	Redis RedisConfig `json:"redis"`

	SEO         ProviderConfig `json:"seo"`
	EmailFinder ProviderConfig `json:"email_finder"`
	LLM         ProviderConfig `json:"llm"`
	GMass       ProviderConfig `json:"gmass"`
	LLMModel    string         `json:"llm_model"`
	HTTPTimeout time.Duration  `json:"http_timeout"`

	// Gmail OAuth application credentials, shared by all gmail senders.
	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"-"`

	TrackingBaseURL string `json:"tracking_base_url"`

	Pipeline PipelineConfig `json:"pipeline"`

	RateLimitPerMinute int `json:"rate_limit_per_minute"`
}

// Load reads the environment (a .env file is honored when present) and
// returns the fully populated configuration. It is called once per process.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "linkreach"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		APIKey:        getEnv("API_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		SEO: ProviderConfig{
			BaseURL: getEnv("SEO_API_URL", "https://api.seoprovider.example.com"),
			APIKey:  getEnv("SEO_API_KEY", ""),
		},
		EmailFinder: ProviderConfig{
			BaseURL: getEnv("FINDER_API_URL", "https://api.emailfinder.example.com"),
			APIKey:  getEnv("FINDER_API_KEY", ""),
		},
		LLM: ProviderConfig{
			BaseURL: getEnv("LLM_API_URL", "https://api.openai.com"),
			APIKey:  getEnv("LLM_API_KEY", ""),
		},
		GMass: ProviderConfig{
			BaseURL: getEnv("GMASS_API_URL", "https://api.gmass.co"),
			APIKey:  getEnv("GMASS_API_KEY", ""),
		},
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		HTTPTimeout: getEnvAsDuration("PROVIDER_HTTP_TIMEOUT", 30*time.Second),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		TrackingBaseURL: getEnv("TRACKING_BASE_URL", "http://localhost:5000"),

		Pipeline: PipelineConfig{
			MaxBatchSize:        getEnvAsInt("PIPELINE_MAX_BATCH", 25),
			MaxAttempts:         getEnvAsInt("PIPELINE_MAX_ATTEMPTS", 3),
			RetryBaseDelay:      getEnvAsDuration("PIPELINE_RETRY_BASE", 5*time.Minute),
			RetryMaxDelay:       getEnvAsDuration("PIPELINE_RETRY_MAX", 24*time.Hour),
			MonitorGraceDays:    getEnvAsInt("PIPELINE_MONITOR_GRACE_DAYS", 7),
			RunBudget:           getEnvAsDuration("PIPELINE_RUN_BUDGET", 5*time.Minute),
			LockPath:            getEnv("PIPELINE_LOCK_PATH", "/tmp/linkreach-pipeline.lock"),
			LockStaleAfter:      getEnvAsDuration("PIPELINE_LOCK_STALE", 5*time.Minute),
			HealthCheckInterval: getEnvAsDuration("PIPELINE_HEALTH_INTERVAL", 30*time.Minute),
			SenderCooldown:      getEnvAsDuration("PIPELINE_SENDER_COOLDOWN", 2*time.Hour),
			RotationMode:        getEnv("PIPELINE_ROTATION_MODE", "sequential"),
			MinAuthorityScore:   float64(getEnvAsInt("SCORING_MIN_AUTHORITY", 30)),
			CleanupAfterDays:    getEnvAsInt("PIPELINE_CLEANUP_DAYS", 90),

			WorkerEnabled:  getEnv("PIPELINE_WORKER_ENABLED", "true") == "true",
			WorkerInterval: getEnvAsDuration("PIPELINE_WORKER_INTERVAL", 10*time.Minute),
		},

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.DBPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is required")
	}

	logConfig(cfg)
	return cfg, nil
}

// ConnectDB opens the postgres connection, pings it and runs migrations.
func ConnectDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)
	log.Println("Connecting to database:", maskPassword(dsn))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := migrateDB(db); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

func migrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Campaign{},
		&models.TargetDomain{},
		&models.OutreachEmail{},
		&models.EmailSearchQueue{},
		&models.EmailQueue{},
		&models.Sender{},
		&models.SenderHealth{},
		&models.InboundReply{},
		&models.SystemSetting{},
		&models.Template{},
	)
}

// Helper functions

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig(cfg *Config) {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Server Port: %s", cfg.ServerPort)
	log.Printf("Database: %s@%s:%s/%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName)
	log.Printf("Providers: SEO(%t), Finder(%t), LLM(%t), GMass(%t)",
		cfg.SEO.APIKey != "",
		cfg.EmailFinder.APIKey != "",
		cfg.LLM.APIKey != "",
		cfg.GMass.APIKey != "")
}
