package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config is the process configuration. It is read once at startup.
type Config struct {
	Env   string `env:"APP_ENV" envDefault:"development"`
	Debug bool   `env:"APP_DEBUG" envDefault:"false"`

	HTTP      HTTP      `envPrefix:"HTTP_"`
	DB        DB        `envPrefix:"DB_"`
	Auth      Auth      `envPrefix:"AUTH_"`
	CORS      CORS      `envPrefix:"CORS_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
	Activity  Activity  `envPrefix:"ACTIVITY_"`
}

type HTTP struct {
	Addr         string        `env:"ADDR" envDefault:":3000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	BodyLimit    int           `env:"BODY_LIMIT" envDefault:"1048576"`
}

type DB struct {
	Driver         string `env:"DRIVER" envDefault:"sqlite"`
	DSN            string `env:"DSN" envDefault:"file:slim-express.db?cache=shared"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	OptimisticLock bool   `env:"OPTIMISTIC_LOCK" envDefault:"false"`
}

type Auth struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTIssuer     string        `env:"JWT_ISSUER" envDefault:"slim-express"`
	JWTAudience   string        `env:"JWT_AUDIENCE" envDefault:"slim-express-users"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	HashCost      int           `env:"HASH_COST" envDefault:"12"`
	AdminEmails   []string      `env:"ADMIN_EMAILS" envSeparator:","`
	HashidUserIDs bool          `env:"HASHID_USER_IDS" envDefault:"false"`
	SweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
}

type CORS struct {
	AllowOrigins string `env:"ALLOW_ORIGINS" envDefault:"*"`
}

// Activity selects how audit events are emitted: "log" writes them through
// the application logger, "json" writes normalized JSON lines to stdout.
type Activity struct {
	Format string `env:"FORMAT" envDefault:"log"`
}

type RateLimit struct {
	Max    int           `env:"MAX" envDefault:"20"`
	Window time.Duration `env:"WINDOW" envDefault:"1m"`
}

// Load reads the given dotenv files, falling back to .env, and parses the
// environment. Missing files are ignored. Variables already present in the
// environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	return Parse()
}

// Parse builds a Config from the current environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	c.Activity.Format = strings.ToLower(strings.TrimSpace(c.Activity.Format))

	emails := c.Auth.AdminEmails[:0]
	for _, e := range c.Auth.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			emails = append(emails, e)
		}
	}
	c.Auth.AdminEmails = emails
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Env, validation.In(EnvDevelopment, EnvProduction, EnvTest)),
		validation.Field(&c.HTTP),
		validation.Field(&c.DB),
		validation.Field(&c.Auth),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Activity),
	)
}

func (h HTTP) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
		validation.Field(&h.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&h.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&h.BodyLimit, validation.Min(1)),
	)
}

func (d DB) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "postgres")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.JWTSecret,
			validation.Required.Error("AUTH_JWT_SECRET is required"),
			validation.Length(32, 0).Error("must be at least 32 characters"),
		),
		validation.Field(&a.JWTIssuer, validation.Required),
		validation.Field(&a.JWTAudience, validation.Required),
		validation.Field(&a.AccessTTL, validation.By(positiveDuration)),
		validation.Field(&a.RefreshTTL, validation.By(positiveDuration)),
		validation.Field(&a.HashCost, validation.Min(4), validation.Max(31)),
		validation.Field(&a.SweepInterval, validation.By(positiveDuration)),
	)
}

func (r RateLimit) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Max, validation.Min(0)),
		validation.Field(&r.Window, validation.By(positiveDuration)),
	)
}

func (a Activity) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Format, validation.In("log", "json")),
	)
}

// IsProduction reports whether logs should be machine readable
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func positiveDuration(value any) error {
	d, ok := value.(time.Duration)
	if !ok {
		return errors.New("must be a duration")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}
