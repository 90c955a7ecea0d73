package services

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Facebook  FacebookConfig
	Scheduler SchedulerConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Frontend  FrontendConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret string
}

type FacebookConfig struct {
	AppID       string
	AppSecret   string
	RedirectURL string
}

type SchedulerConfig struct {
	Interval       string
	Workers        int
	MaxRetries     int
	FailedMaxAge   string
	CleanupEnabled bool
}

type CORSConfig struct {
	AllowedOrigins string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type FrontendConfig struct {
	URL string
}

type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "false")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("facebook.app_id", "")
	viper.SetDefault("facebook.app_secret", "")
	viper.SetDefault("facebook.redirect_url", "http://127.0.0.1:8000/api/v1/auth/facebook/callback")
	viper.SetDefault("scheduler.interval", "30s")
	viper.SetDefault("scheduler.workers", "4")
	viper.SetDefault("scheduler.max_retries", "3")
	viper.SetDefault("scheduler.failed_max_age", "168h")
	viper.SetDefault("scheduler.cleanup_enabled", "true")
	viper.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("frontend.url", "http://localhost:3000")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", "100")
	viper.SetDefault("log.max_backups", "3")

	// Map environment variables to config keys
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("facebook.app_id", "FACEBOOK_APP_ID")
	viper.BindEnv("facebook.app_secret", "FACEBOOK_APP_SECRET")
	viper.BindEnv("facebook.redirect_url", "FACEBOOK_REDIRECT_URL")
	viper.BindEnv("scheduler.interval", "SCHEDULER_INTERVAL")
	viper.BindEnv("scheduler.workers", "SCHEDULER_WORKERS")
	viper.BindEnv("scheduler.max_retries", "SCHEDULER_MAX_RETRIES")
	viper.BindEnv("scheduler.failed_max_age", "SCHEDULER_FAILED_MAX_AGE")
	viper.BindEnv("scheduler.cleanup_enabled", "SCHEDULER_CLEANUP_ENABLED")
	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("frontend.url", "FRONTEND_URL")
	viper.BindEnv("log.file", "LOG_FILE")
	viper.BindEnv("log.max_size_mb", "LOG_MAX_SIZE_MB")
	viper.BindEnv("log.max_backups", "LOG_MAX_BACKUPS")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetString("server.port"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		Facebook: FacebookConfig{
			AppID:       viper.GetString("facebook.app_id"),
			AppSecret:   viper.GetString("facebook.app_secret"),
			RedirectURL: viper.GetString("facebook.redirect_url"),
		},
		Scheduler: SchedulerConfig{
			Interval:       viper.GetString("scheduler.interval"),
			Workers:        viper.GetInt("scheduler.workers"),
			MaxRetries:     viper.GetInt("scheduler.max_retries"),
			FailedMaxAge:   viper.GetString("scheduler.failed_max_age"),
			CleanupEnabled: viper.GetBool("scheduler.cleanup_enabled"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetString("cors.allowed_origins"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Frontend: FrontendConfig{
			URL: viper.GetString("frontend.url"),
		},
		Log: LogConfig{
			File:       viper.GetString("log.file"),
			MaxSizeMB:  viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
		},
	}
}
