package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Capture struct {
		Interval          time.Duration `yaml:"interval"`
		InitialDelay      time.Duration `yaml:"initial_delay"`
		SettleDelay       time.Duration `yaml:"settle_delay"`
		FrameDir          string        `yaml:"frame_dir"`
		FFmpegPath        string        `yaml:"ffmpeg_path"`
		Quality           int           `yaml:"quality"`
		MaxWidth          int           `yaml:"max_width"`
		MaxHeight         int           `yaml:"max_height"`
		StreamURLTemplate string        `yaml:"stream_url_template"`
		ExtractTimeout    time.Duration `yaml:"extract_timeout"`
	} `yaml:"capture"`

	Vision struct {
		APIKey           string        `yaml:"api_key"`
		APIURL           string        `yaml:"api_url"`
		AssetURL         string        `yaml:"asset_url"`
		Task             string        `yaml:"task"`
		Timeout          time.Duration `yaml:"timeout"`
		DetailedAnalysis bool          `yaml:"detailed_analysis"`
	} `yaml:"vision"`

	Assessment struct {
		NotificationThreshold int `yaml:"notification_threshold"`
		PatternConfidence     int `yaml:"pattern_confidence"`
		ContextConfidence     int `yaml:"context_confidence"`
		AgreementBonus        int `yaml:"agreement_bonus"`
	} `yaml:"assessment"`

	Alerts struct {
		Enabled         bool          `yaml:"enabled"`
		TelegramToken   string        `yaml:"telegram_token"`
		TelegramChatID  string        `yaml:"telegram_chat_id"`
		Timeout         time.Duration `yaml:"timeout"`
		PerStreamPerMin float64       `yaml:"per_stream_per_minute"`
		Burst           int           `yaml:"burst"`
	} `yaml:"alerts"`

	Retention struct {
		Interval   time.Duration `yaml:"interval"`
		MaxFrames  int           `yaml:"max_frames"`
		MaxResults int           `yaml:"max_results"`
		ResultsDir string        `yaml:"results_dir"`
	} `yaml:"retention"`

	Redis struct {
		Enabled     bool   `yaml:"enabled"`
		Address     string `yaml:"address"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		PoolSize    int    `yaml:"pool_size"`
		HistorySize int    `yaml:"history_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	RateLimiting struct {
		Enabled           bool    `yaml:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limiting"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Capture.Interval <= 0 {
		return fmt.Errorf("capture.interval must be > 0")
	}
	if c.Capture.InitialDelay < 0 {
		return fmt.Errorf("capture.initial_delay must be >= 0")
	}
	if c.Capture.SettleDelay < 0 {
		return fmt.Errorf("capture.settle_delay must be >= 0")
	}
	if c.Capture.FrameDir == "" {
		return fmt.Errorf("capture.frame_dir must not be empty")
	}
	if c.Capture.StreamURLTemplate == "" {
		return fmt.Errorf("capture.stream_url_template must not be empty")
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 31 {
		return fmt.Errorf("capture.quality must be in 1..31")
	}

	if c.Vision.APIURL == "" {
		return fmt.Errorf("vision.api_url must not be empty")
	}
	if c.Vision.Timeout <= 0 {
		return fmt.Errorf("vision.timeout must be > 0")
	}

	if c.Assessment.NotificationThreshold < 1 || c.Assessment.NotificationThreshold > 5 {
		return fmt.Errorf("assessment.notification_threshold must be in 1..5")
	}
	if c.Assessment.PatternConfidence < 0 || c.Assessment.ContextConfidence < 0 || c.Assessment.AgreementBonus < 0 {
		return fmt.Errorf("assessment confidence components must be >= 0")
	}

	if c.Alerts.Enabled {
		if c.Alerts.TelegramToken == "" {
			return fmt.Errorf("alerts.telegram_token must not be empty when alerts.enabled=true")
		}
		if c.Alerts.TelegramChatID == "" {
			return fmt.Errorf("alerts.telegram_chat_id must not be empty when alerts.enabled=true")
		}
		if c.Alerts.PerStreamPerMin <= 0 {
			return fmt.Errorf("alerts.per_stream_per_minute must be > 0 when alerts.enabled=true")
		}
	}

	if c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be > 0")
	}
	if c.Retention.MaxFrames <= 0 {
		return fmt.Errorf("retention.max_frames must be > 0")
	}
	if c.Retention.MaxResults <= 0 {
		return fmt.Errorf("retention.max_results must be > 0")
	}
	if c.Retention.ResultsDir == "" {
		return fmt.Errorf("retention.results_dir must not be empty")
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Burst <= 0 {
			return fmt.Errorf("rate_limiting.burst must be > 0 when rate limiting is enabled")
		}
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Capture.Interval = 30 * time.Second
	cfg.Capture.InitialDelay = 5 * time.Second
	cfg.Capture.SettleDelay = 500 * time.Millisecond
	cfg.Capture.FrameDir = "data/frames"
	cfg.Capture.FFmpegPath = "ffmpeg"
	cfg.Capture.Quality = 2
	cfg.Capture.StreamURLTemplate = "rtmp://127.0.0.1:1935/%s"
	cfg.Capture.ExtractTimeout = 20 * time.Second

	cfg.Vision.APIURL = "https://ai.api.nvidia.com/v1/vlm/microsoft/florence-2"
	cfg.Vision.AssetURL = "https://api.nvcf.nvidia.com/v2/nvcf/assets"
	cfg.Vision.Task = "<CAPTION>"
	cfg.Vision.Timeout = 60 * time.Second
	cfg.Vision.DetailedAnalysis = false

	cfg.Assessment.NotificationThreshold = 3
	cfg.Assessment.PatternConfidence = 40
	cfg.Assessment.ContextConfidence = 40
	cfg.Assessment.AgreementBonus = 20

	cfg.Alerts.Enabled = false
	cfg.Alerts.Timeout = 30 * time.Second
	cfg.Alerts.PerStreamPerMin = 2
	cfg.Alerts.Burst = 1

	cfg.Retention.Interval = 5 * time.Minute
	cfg.Retention.MaxFrames = 100
	cfg.Retention.MaxResults = 200
	cfg.Retention.ResultsDir = "data/results"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.HistorySize = 500

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 50
	cfg.RateLimiting.Burst = 100

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("AERIAL_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("AERIAL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("AERIAL_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if key := os.Getenv("NVIDIA_API_KEY"); key != "" {
		c.Vision.APIKey = key
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Alerts.TelegramToken = token
	}
	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		c.Alerts.TelegramChatID = chat
	}
}
