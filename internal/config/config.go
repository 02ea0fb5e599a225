// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config holds every setting read from the environment (and .env via
// godotenv/autoload in the binaries).
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// NodeID is stamped as the origin of every snapshot this process writes.
	NodeID string `env:"NODE_ID"`

	PostgresDSN string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	ActionQueue string `env:"ACTION_QUEUE" envDefault:"trivia_actions"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"trivia.db"`

	// RecoverInterval is how often a degraded server probes the remote store.
	RecoverInterval time.Duration `env:"RECOVER_INTERVAL" envDefault:"15s"`

	JWTKeyPath      string `env:"JWT_PRIVATE_KEY_PATH"`
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	GenerateAPIKey       string        `env:"OPENAI_API_KEY"`
	GenerateResponsesURL string        `env:"GENERATE_RESPONSES_URL"`
	GenerateImagesURL    string        `env:"GENERATE_IMAGES_URL"`
	GenerateModel        string        `env:"GENERATE_MODEL"`
	GenerateImageModel   string        `env:"GENERATE_IMAGE_MODEL"`
	GenerateMinInterval  time.Duration `env:"GENERATE_MIN_INTERVAL" envDefault:"5s"`
	GenerateCategories   int           `env:"GENERATE_CATEGORIES" envDefault:"6"`

	// ProjectClueStatus copies answered/void marks back onto the template
	// when a session ends.
	ProjectClueStatus bool `env:"PROJECT_CLUE_STATUS" envDefault:"false"`

	// Historian settings.
	HistorianBatchSize   int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"50"`
	HistorianFlushEvery  time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"2s"`
	AbandonAfter         time.Duration `env:"ABANDON_AFTER" envDefault:"6h"`
	AbandonCheckInterval time.Duration `env:"ABANDON_CHECK_INTERVAL" envDefault:"10m"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.NodeID == "" {
		host, _ := os.Hostname()
		cfg.NodeID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return cfg, nil
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithError(err).Warnf("unknown log level %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
