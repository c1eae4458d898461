package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	APIBaseURL string `mapstructure:"api_base_url"`
	ProjectID  string `mapstructure:"project_id"`

	Email        string `mapstructure:"email"`
	RefreshToken string `mapstructure:"refresh_token"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	PollTimeout     time.Duration `mapstructure:"poll_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	MediaGrace      time.Duration `mapstructure:"media_grace"`
	ChunkTick       time.Duration `mapstructure:"chunk_tick"`
	ParticipantTick time.Duration `mapstructure:"participant_tick"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("api_base_url", "https://meet.googleapis.com")
	v.SetDefault("poll_timeout", "30s")
	v.SetDefault("poll_interval", "5s")
	v.SetDefault("connect_timeout", "10s")
	v.SetDefault("settle_delay", "2s")
	v.SetDefault("media_grace", "3s")
	v.SetDefault("chunk_tick", "5s")
	v.SetDefault("participant_tick", "10s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | API: %s\n", cfg.Mode, cfg.Port, cfg.APIBaseURL)
	return &cfg, nil
}
