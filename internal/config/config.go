package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	OpenAIAPIKey   string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `mapstructure:"OPENAI_BASE_URL"`
	DefaultModel   string        `mapstructure:"DEFAULT_MODEL"`
	AgentKey       string        `mapstructure:"AGENT_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	ScreenshotDir  string        `mapstructure:"SCREENSHOT_DIR"`
	CodegenWorkers int           `mapstructure:"CODEGEN_WORKERS"`
	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string        `mapstructure:"KAFKA_TOPIC"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("DEFAULT_MODEL", "gpt-5")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("SCREENSHOT_DIR", "screenshots")
	v.SetDefault("CODEGEN_WORKERS", 4)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
