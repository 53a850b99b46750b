// Command ezdb manages the tables and rows of an ezdb schema document.
//
// Usage:
//
//	ezdb [flags] <command> [arguments]
//
// Commands:
//
//	types                            list the types of the schema
//	create                           create the tables of all types
//	drop                             drop the tables of all types
//	insert <Type> field=value...     insert one instance
//	select [flags] <Type>            print matching instances as JSON lines
//	watch                            create tables whenever the schema changes
//
// The configuration is read from ezdb.yaml unless -config names another
// file; see Config for its keys.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/ezdb"
	"github.com/syssam/ezdb/cache/memory"
	"github.com/syssam/ezdb/dialect/metrics"
	"github.com/syssam/ezdb/dialect/sql"
	"github.com/syssam/ezdb/schema/load"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "ezdb:", err)
		}
		os.Exit(1)
	}
}

// env is what a command runs against.
type env struct {
	cfg     Config
	log     *slog.Logger
	out     io.Writer
	backend *metrics.Backend
	db      *sql.Backend
	stats   *sql.StatsDriver
	metrics *prometheus.Registry
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ezdb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "ezdb.yaml", "configuration file")
		dialectArg = fs.String("dialect", "", "database/sql driver name (mysql, sqlite, postgres, pgx)")
		dsnArg     = fs.String("dsn", "", "data source name")
		schemaArg  = fs.String("schema", "", "schema document")
		slowArg    = fs.Duration("slow-query", 0, "log statements slower than this")
		debugArg   = fs.Bool("debug", false, "log every statement")
		levelArg   = fs.String("log-level", "", "log level (debug, info, warn, error)")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: ezdb [flags] <types|create|drop|insert|select|watch> [arguments]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := readConfig(*configPath, explicit)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dialect":
			cfg.Dialect = *dialectArg
		case "dsn":
			cfg.DSN = *dsnArg
		case "schema":
			cfg.Schema = *schemaArg
		case "slow-query":
			cfg.SlowQuery = *slowArg
		case "debug":
			cfg.Debug = *debugArg
		case "log-level":
			cfg.LogLevel = *levelArg
		}
	})
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	level, err := cfg.level()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	e, err := open(cfg, log, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.backend.Close(); err != nil {
			log.Error("closing database", "error", err)
		}
		log.Debug("statements", "stats", e.stats.QueryStats().Stats().String())
	}()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "types":
		return e.types()
	case "create":
		return e.create(ctx)
	case "drop":
		return e.drop(ctx)
	case "insert":
		return e.insert(ctx, cmdArgs)
	case "select":
		return e.selectRows(ctx, cmdArgs)
	case "watch":
		return e.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// open connects to the configured database. Statements pass through the
// statistics driver, optionally the debug driver, and the metrics decorator.
func open(cfg Config, log *slog.Logger, out io.Writer) (*env, error) {
	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	drv, err := sql.Open(cfg.Dialect, dsn)
	if err != nil {
		return nil, err
	}
	var statsOpts []sql.StatsOption
	if cfg.SlowQuery > 0 {
		statsOpts = append(statsOpts, sql.WithSlowThreshold(cfg.SlowQuery), sql.WithSlowQueryLogger(log))
	}
	stats := sql.NewStatsDriver(drv, statsOpts...)
	var tx sql.TxDriver = stats
	if cfg.Debug {
		tx = sql.NewDebugDriver(stats, sql.DebugWithLogger(log))
	}
	reg := prometheus.NewRegistry()
	db := sql.NewBackend(tx, sql.WithLogger(log))
	b, err := metrics.New(db, metrics.WithRegisterer(reg))
	if err != nil {
		drv.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: log, out: out, backend: b, db: db, stats: stats, metrics: reg}, nil
}

// registry loads the schema document into a new registry.
func (e *env) registry() (*ezdb.Registry, error) {
	opts := []ezdb.Option{ezdb.WithLogger(e.log)}
	if e.cfg.Cache.Size > 0 {
		opts = append(opts, ezdb.WithCache(memory.New(e.cfg.Cache.Size), e.cfg.Cache.TTL))
	}
	reg := ezdb.NewRegistry(opts...)
	if _, err := load.DefineFile(reg, e.cfg.Schema); err != nil {
		return nil, err
	}
	return reg, nil
}

func (e *env) create(ctx context.Context) error {
	reg, err := e.registry()
	if err != nil {
		return err
	}
	start := time.Now()
	if err := reg.CreateTables(ctx, e.backend); err != nil {
		return err
	}
	if err := e.backend.Commit(ctx); err != nil {
		return err
	}
	e.log.Info("tables created", "types", len(reg.Types()), "took", time.Since(start))
	return nil
}

func (e *env) drop(ctx context.Context) error {
	reg, err := e.registry()
	if err != nil {
		return err
	}
	if err := reg.DropTables(ctx, e.backend); err != nil {
		return err
	}
	if err := e.backend.Commit(ctx); err != nil {
		return err
	}
	e.log.Info("tables dropped", "types", len(reg.Types()))
	return nil
}
