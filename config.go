package advisor

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	esql "github.com/janiece-23/BetterAdvisor/dialect/sql"
)

// Config holds connection and pool settings read from the environment.
type Config struct {
	Driver          string        `env:"ADVISOR_DB_DRIVER" env-default:"sqlite"`
	DSN             string        `env:"ADVISOR_DB_DSN" env-default:"file:advisor.db"`
	MaxOpenConns    int           `env:"ADVISOR_DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"ADVISOR_DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"ADVISOR_DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

// ReadConfig loads Config from the environment.
func ReadConfig() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("advisor: reading config: %w", err)
	}
	return cfg, nil
}

// OpenConfig opens a pooled connection per cfg and returns an Engine for
// it. The driver named by cfg.Driver must be registered with
// database/sql by the caller.
func OpenConfig(cfg Config, opts ...Option) (*Engine, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("advisor: opening %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return New(esql.OpenDB(cfg.Driver, db), opts...), nil
}

// OpenFromEnv reads the environment configuration and opens an Engine
// with it.
func OpenFromEnv(opts ...Option) (*Engine, error) {
	cfg, err := ReadConfig()
	if err != nil {
		return nil, err
	}
	return OpenConfig(cfg, opts...)
}
