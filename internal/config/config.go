package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob shared by the server and bot binaries.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080"`
	ModelPath       string        `env:"MODEL_PATH,default=models/alzheimer_effnet_b0.onnx"`
	MetadataPath    string        `env:"MODEL_METADATA_PATH,default=models/alzheimer_effnet_b0.json"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	CacheTTL        time.Duration `env:"CACHE_TTL,default=5m"`
	TelegramToken   string        `env:"TELEGRAM_TOKEN"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES,default=10485760"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`
}

// Load reads the configuration from the process environment. A missing
// .env file is not an error; explicit environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}
