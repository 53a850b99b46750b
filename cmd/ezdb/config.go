package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"

	"github.com/syssam/ezdb/dialect"
)

// Config is the configuration file of the ezdb command. Flags override
// the values read from the file.
type Config struct {
	// Dialect is the database/sql driver name: mysql, sqlite, postgres or pgx.
	Dialect string `yaml:"dialect"`
	// DSN is the data source name passed to the driver.
	DSN string `yaml:"dsn,omitempty"`
	// MySQL builds the DSN from structured fields when DSN is empty.
	MySQL *MySQLConfig `yaml:"mysql,omitempty"`
	// Schema is the path of the YAML schema document.
	Schema string `yaml:"schema"`
	// SlowQuery enables the slow query log for statements slower than it.
	SlowQuery time.Duration `yaml:"slow_query,omitempty"`
	// Debug logs every statement.
	Debug bool `yaml:"debug,omitempty"`
	// LogLevel is one of debug, info, warn and error.
	LogLevel string `yaml:"log_level,omitempty"`
	// Cache configures the in-memory select cache.
	Cache CacheConfig `yaml:"cache,omitempty"`
	// MetricsAddr serves Prometheus metrics while watching, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// CacheConfig configures the select cache. A zero Size disables it.
type CacheConfig struct {
	Size int           `yaml:"size,omitempty"`
	TTL  time.Duration `yaml:"ttl,omitempty"`
}

// MySQLConfig holds the connection parameters of a MySQL server.
type MySQLConfig struct {
	User     string            `yaml:"user"`
	Password string            `yaml:"password,omitempty"`
	Net      string            `yaml:"net,omitempty"`
	Addr     string            `yaml:"addr"`
	DBName   string            `yaml:"dbname"`
	Params   map[string]string `yaml:"params,omitempty"`
}

// FormatDSN returns the DSN of the connection parameters.
func (c *MySQLConfig) FormatDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = c.Net
	if cfg.Net == "" {
		cfg.Net = "tcp"
	}
	cfg.Addr = c.Addr
	cfg.DBName = c.DBName
	cfg.Params = c.Params
	return cfg.FormatDSN()
}

func defaultConfig() Config {
	return Config{
		Dialect:  dialect.SQLite,
		DSN:      "file:ezdb.db",
		Schema:   "schema.yaml",
		LogLevel: "info",
	}
}

// readConfig reads the file at path over the defaults. A missing file is
// not an error when the path was not given explicitly.
func readConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return cfg, nil
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.MySQL != nil && cfg.DSN == defaultConfig().DSN {
		cfg.DSN = ""
	}
	return cfg, nil
}

// dsn returns the data source name, formatting the MySQL parameters if no
// DSN is set.
func (c Config) dsn() (string, error) {
	switch {
	case c.DSN != "":
		return c.DSN, nil
	case c.MySQL != nil:
		return c.MySQL.FormatDSN(), nil
	default:
		return "", errors.New("no dsn configured")
	}
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
