package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"wisepal.db"`
	Secret        string        `env:"SECRET,required,notEmpty"`
	GoogleAPIKey  string        `env:"GOOGLE_API_KEY"`
	GenModel      string        `env:"GEN_MODEL" envDefault:"gemini-1.5-flash-latest"`
	TokenLifetime time.Duration `env:"TOKEN_LIFETIME" envDefault:"3600s"`
	HTTPPort      string        `env:"HTTP_PORT" envDefault:"8000"`
	Env           string        `env:"ENV" envDefault:"development"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,https://wise-pal-shanky048.vercel.app"`

	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
}

// Load reads a .env file if one exists and parses the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // Missing .env is fine, real environment wins anyway

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.GoogleAPIKey == "" {
		cfg.GoogleAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if cfg.TokenLifetime <= 0 {
		return nil, fmt.Errorf("TOKEN_LIFETIME must be positive, got %s", cfg.TokenLifetime)
	}

	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins

	return cfg, nil
}
