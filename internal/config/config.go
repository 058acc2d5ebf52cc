package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
)

const cutoffLayout = "2006-01-02"

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"shakai-quiz"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	// CutoffDate closes the service after the given day (YYYY-MM-DD, quiz timezone).
	CutoffDate string `env:"APP_CUTOFF_DATE" envDefault:""`

	Session Session
	Redis   Redis
	Quiz    Quiz

	location *time.Location
	closesAt time.Time
}

// Session controls where session state lives and how clients are identified.
type Session struct {
	Store        string        `env:"SESSION_STORE" envDefault:"memory"`
	TTL          time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	CookieSecret string        `env:"SESSION_COOKIE_SECRET,notEmpty"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"shakai-quiz"`
	LockTTL      time.Duration `env:"SESSION_LOCK_TTL" envDefault:"10s"`
}

// Redis holds session store configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Quiz groups question pool and round settings.
type Quiz struct {
	DatasetDir         string            `env:"QUIZ_DATASET_DIR" envDefault:"data"`
	Datasets           map[string]string `env:"QUIZ_DATASETS" envKeyValSeparator:"=" envDefault:"歴史=rekishi.csv,地理=chiri.csv,公民=koumin.csv"`
	DatasetOrder       []string          `env:"QUIZ_DATASET_ORDER" envSeparator:"," envDefault:"歴史,地理,公民"`
	PresetCounts       []int             `env:"QUIZ_PRESET_COUNTS" envSeparator:"," envDefault:"10,15,20"`
	RetryPolicy        string            `env:"QUIZ_RETRY_POLICY" envDefault:"retry"`
	RequireFieldColumn bool              `env:"QUIZ_REQUIRE_FIELD_COLUMN" envDefault:"false"`
	RandomSeed         uint64            `env:"QUIZ_RANDOM_SEED" envDefault:"0"`
	AutoAdvance        time.Duration     `env:"QUIZ_AUTO_ADVANCE" envDefault:"0s"`
	MaxUploadBytes     int64             `env:"QUIZ_MAX_UPLOAD_BYTES" envDefault:"2097152"`
	Timezone           string            `env:"QUIZ_TIMEZONE" envDefault:"Asia/Tokyo"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *App) finalize() error {
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("SESSION_STORE must be memory or redis, got %q", c.Session.Store)
	}
	switch c.Quiz.RetryPolicy {
	case "retry", "once":
	default:
		return fmt.Errorf("QUIZ_RETRY_POLICY must be retry or once, got %q", c.Quiz.RetryPolicy)
	}
	for _, n := range c.Quiz.PresetCounts {
		if n < 1 {
			return fmt.Errorf("QUIZ_PRESET_COUNTS entries must be positive, got %d", n)
		}
	}
	if len(c.Quiz.Datasets) == 0 {
		return fmt.Errorf("QUIZ_DATASETS must list at least one dataset")
	}

	loc, err := time.LoadLocation(c.Quiz.Timezone)
	if err != nil {
		return fmt.Errorf("QUIZ_TIMEZONE: %w", err)
	}
	c.location = loc

	if c.CutoffDate = strings.TrimSpace(c.CutoffDate); c.CutoffDate != "" {
		day, err := time.ParseInLocation(cutoffLayout, c.CutoffDate, loc)
		if err != nil {
			return fmt.Errorf("APP_CUTOFF_DATE: %w", err)
		}
		c.closesAt = day.AddDate(0, 0, 1)
	}
	return nil
}

// Location is the timezone used for export timestamps and the cutoff date.
func (c *App) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Closed reports whether the cutoff date has passed at now.
func (c *App) Closed(now time.Time) bool {
	return !c.closesAt.IsZero() && !now.Before(c.closesAt)
}

// DatasetFile names one bundled question file.
type DatasetFile struct {
	Name string
	File string
}

// DatasetFiles returns the bundled datasets in display order. Datasets
// missing from QUIZ_DATASET_ORDER follow in name order.
func (q Quiz) DatasetFiles() []DatasetFile {
	out := make([]DatasetFile, 0, len(q.Datasets))
	seen := make(map[string]bool, len(q.Datasets))
	for _, name := range q.DatasetOrder {
		if file, ok := q.Datasets[name]; ok && !seen[name] {
			seen[name] = true
			out = append(out, DatasetFile{Name: name, File: file})
		}
	}

	var rest []string
	for name := range q.Datasets {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	for _, name := range rest {
		out = append(out, DatasetFile{Name: name, File: q.Datasets[name]})
	}
	return out
}
