package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BillingWebhookKey  string
	UploadURLTTL       time.Duration
	FileBaseURL        string
	FileSignSecret     string
	ActivityWindowDays int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://crewdesk:crewdesk@db:5432/crewdesk?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:     time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:    time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		BillingWebhookKey:  GetString("BILLING_WEBHOOK_KEY", ""),
		UploadURLTTL:       time.Duration(GetInt("UPLOAD_URL_TTL_MIN", 15)) * time.Minute,
		FileBaseURL:        GetString("FILE_BASE_URL", "http://localhost:4000/storage"),
		FileSignSecret:     GetString("FILE_SIGN_SECRET", "localsigningsecret"),
		ActivityWindowDays: GetInt("ACTIVITY_WINDOW_DAYS", 30),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
