// Package config builds the server configuration from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file. The result is a plain value handed to the components that need it;
// nothing else in the module reads the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string        `env:"PORT"              envDefault:"8080"`
	GinMode      string        `env:"GIN_MODE"          envDefault:"release"`
	LogLevel     string        `env:"LOG_LEVEL"         envDefault:"info"`
	DatabasePath string        `env:"DATABASE_PATH"     envDefault:"portfolio.db"`
	Retention    time.Duration `env:"VISITOR_RETENTION" envDefault:"8760h"`

	EmailJS EmailJS `envPrefix:"EMAILJS_"`
	Counter Counter `envPrefix:"COUNTER_"`
	Contact Contact `envPrefix:"CONTACT_"`
	Admin   Admin   `envPrefix:"ADMIN_"`
}

// EmailJS identifies the relay account the contact form delivers through.
type EmailJS struct {
	ServiceID  string        `env:"SERVICE_ID"`
	TemplateID string        `env:"TEMPLATE_ID"`
	PublicKey  string        `env:"PUBLIC_KEY"`
	PrivateKey string        `env:"PRIVATE_KEY"`
	BaseURL    string        `env:"BASE_URL" envDefault:"https://api.emailjs.com"`
	Timeout    time.Duration `env:"TIMEOUT"  envDefault:"10s"`
}

type Counter struct {
	Duration time.Duration `env:"DURATION" envDefault:"2s"`
	Tick     time.Duration `env:"TICK"     envDefault:"16ms"`
}

// Contact throttles the contact endpoint per client. A zero rate disables it.
type Contact struct {
	RatePerMinute int `env:"RATE_PER_MINUTE" envDefault:"10"`
	RateBurst     int `env:"RATE_BURST"      envDefault:"20"`
}

type Admin struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD"`
}

// Load reads the given dotenv files (".env" when none are named) into the
// environment and parses it. Missing dotenv files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Parse builds a Config from an explicit environment map.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the contact form cannot work without.
func (c Config) Validate() error {
	var errs []error
	if c.EmailJS.ServiceID == "" {
		errs = append(errs, errors.New("EMAILJS_SERVICE_ID is not set"))
	}
	if c.EmailJS.TemplateID == "" {
		errs = append(errs, errors.New("EMAILJS_TEMPLATE_ID is not set"))
	}
	if c.EmailJS.PublicKey == "" {
		errs = append(errs, errors.New("EMAILJS_PUBLIC_KEY is not set"))
	}
	if c.Counter.Tick <= 0 {
		errs = append(errs, fmt.Errorf("COUNTER_TICK must be positive, got %s", c.Counter.Tick))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return ":" + c.Port
}
