package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"praxis"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type EventsOptions struct {
	Enabled       bool          `env:"EVENTS_ENABLED" envDefault:"true"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1s"`
	SweepBatch    int           `env:"SWEEP_BATCH_SIZE" envDefault:"50"`
	MaxRetries    int           `env:"EVENT_MAX_RETRIES" envDefault:"3"`
	SingleActive  bool          `env:"SWEEP_SINGLE_ACTIVE" envDefault:"true"`
	LockTTL       time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"5m"`

	LastErrorMaxBytes int `env:"EVENT_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	CleanerEnabled  bool          `env:"EVENT_CLEANER_ENABLED" envDefault:"true"`
	CleanerInterval time.Duration `env:"EVENT_CLEANER_INTERVAL" envDefault:"1m"`
	Retention       time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`
}

// Validate checks the events pipeline configuration for errors.
func (e *EventsOptions) Validate() error {
	if e.SweepBatch <= 0 {
		return fmt.Errorf("events SweepBatch must be positive, got %d", e.SweepBatch)
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("events MaxRetries must be non-negative, got %d", e.MaxRetries)
	}
	if e.Retention <= 0 {
		return fmt.Errorf("events Retention must be positive, got %s", e.Retention)
	}
	if e.LockTTL <= 0 {
		return fmt.Errorf("events LockTTL must be positive, got %s", e.LockTTL)
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Events   EventsOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`

	// OpsSocketAddress is where the operational HTTP surface (health,
	// metrics) listens.
	OpsSocketAddress string        `env:"OPS_SOCKET_ADDRESS" envDefault:"localhost:9090"`
	TrialDuration    time.Duration `env:"TRIAL_DURATION" envDefault:"336h"`

	// Platform superusers skip membership checks entirely when enabled.
	SuperuserBypass bool `env:"SUPERUSER_BYPASS" envDefault:"true"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events configuration error: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(c.LogrusLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	c.logger = logger
	return nil
}
