package services

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Transcription TranscriptionConfig
	Speech        SpeechConfig
	Media         MediaConfig
	Sessions      SessionConfig
	JWT           JWTConfig
	WebSocket     WebSocketConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	URL          string
	Driver       string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type TranscriptionConfig struct {
	Provider        string // assemblyai, gemini or none
	AssemblyAIKey   string
	GeminiAPIKey    string
	Timeout         time.Duration
	PollingInterval time.Duration
}

type SpeechConfig struct {
	ElevenLabsKey string
	CacheDir      string
}

type MediaConfig struct {
	Dir string
}

type SessionConfig struct {
	AbandonAfter  time.Duration
	SweepSchedule string
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("transcription.provider", "none")
	viper.SetDefault("assemblyai.api_key", "")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("transcription.timeout", "30s")
	viper.SetDefault("transcription.polling_interval", "3s")
	viper.SetDefault("elevenlabs.api_key", "")
	viper.SetDefault("audio_cache.dir", "/tmp/mockprep_audio_cache")
	viper.SetDefault("media.dir", "uploads/audio")
	viper.SetDefault("sessions.abandon_after", "24h")
	viper.SetDefault("sessions.sweep_schedule", "@every 15m")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("transcription.provider", "TRANSCRIPTION_PROVIDER")
	viper.BindEnv("assemblyai.api_key", "ASSEMBLYAI_API_KEY")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("transcription.timeout", "TRANSCRIPTION_TIMEOUT")
	viper.BindEnv("transcription.polling_interval", "TRANSCRIPTION_POLLING_INTERVAL")
	viper.BindEnv("elevenlabs.api_key", "ELEVENLABS_API_KEY")
	viper.BindEnv("audio_cache.dir", "AUDIO_CACHE_DIR")
	viper.BindEnv("media.dir", "MEDIA_DIR")
	viper.BindEnv("sessions.abandon_after", "SESSION_ABANDON_AFTER")
	viper.BindEnv("sessions.sweep_schedule", "SESSION_SWEEP_SCHEDULE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return configFromViper()
}

func configFromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Environment: viper.GetString("server.environment"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Driver:       viper.GetString("database.driver"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Transcription: TranscriptionConfig{
			Provider:        viper.GetString("transcription.provider"),
			AssemblyAIKey:   viper.GetString("assemblyai.api_key"),
			GeminiAPIKey:    viper.GetString("gemini.api_key"),
			Timeout:         viper.GetDuration("transcription.timeout"),
			PollingInterval: viper.GetDuration("transcription.polling_interval"),
		},
		Speech: SpeechConfig{
			ElevenLabsKey: viper.GetString("elevenlabs.api_key"),
			CacheDir:      viper.GetString("audio_cache.dir"),
		},
		Media: MediaConfig{
			Dir: viper.GetString("media.dir"),
		},
		Sessions: SessionConfig{
			AbandonAfter:  viper.GetDuration("sessions.abandon_after"),
			SweepSchedule: viper.GetString("sessions.sweep_schedule"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
	}
}
