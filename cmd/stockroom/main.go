package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/acdb/stockroom/internal/api"
	"github.com/acdb/stockroom/internal/command"
	"github.com/acdb/stockroom/internal/config"
	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/ledger"
	"github.com/acdb/stockroom/internal/logging"
	"github.com/acdb/stockroom/internal/metrics"
	"github.com/acdb/stockroom/internal/notify"
	"github.com/acdb/stockroom/internal/store"
)

const usage = `Usage: stockroom [command] [flags]

Commands:
  serve     run the HTTP API (default)
  migrate   apply database migrations and exit
  member    create or update a member

Run "stockroom <command> -h" for the command's flags.
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	switch cmd {
	case "serve":
		err = cmdServe(cfg, args)
	case "migrate":
		err = cmdMigrate(cfg, args)
	case "member":
		err = cmdMember(cfg, args)
	case "help", "-h", "-help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", cmd, usage)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags shared by every command, with defaults
// taken from cfg.
func commonFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "")
	fs.StringVar(&cfg.LogFile, "l", cfg.LogFile, "")
}

// setup installs the logger and opens a migrated database.
func setup(cfg *config.Config) (*db.DB, func(), error) {
	closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, err
	}

	dialect, err := db.ParseDialect(cfg.DBDriver)
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	database, err := db.Open(dialect, cfg.DBSource())
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		closeLog()
		return nil, nil, fmt.Errorf("migrating database: %w", err)
	}

	slog.Info("database ready", "driver", dialect, "env", cfg.AppEnv)
	return database, func() {
		database.Close()
		closeLog()
	}, nil
}

func cmdServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	commonFlags(fs, cfg)

	addr := cfg.Addr()
	fs.StringVar(&addr, "addr", addr, "")
	fs.StringVar(&addr, "a", addr, "")

	var bootstrapUser string
	fs.StringVar(&bootstrapUser, "user", "admin", "")
	fs.StringVar(&bootstrapUser, "u", "admin", "")

	fs.Usage = func() {
		fmt.Fprintf(os.Stdout, `Usage: stockroom serve [flags]

Flags:
  -d, -db <path>          SQLite database path (default: %s)
  -a, -addr <host:port>   listen address (default: %s)
  -u, -user <id>          admin member created when none exist (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit
`, cfg.DBPath, addr)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	database, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	if err := bootstrapAdmin(ctx, database, bootstrapUser); err != nil {
		return err
	}

	// JWT secret from the environment, else from the database (generated on
	// first run).
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("getting JWT secret: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	l := ledger.New(database, ledger.Options{
		TxTimeout:  cfg.TxTimeout,
		MaxRetries: cfg.TxMaxRetries,
		Metrics:    collector,
		Logger:     slog.Default().With("component", "ledger"),
	})

	var notifier notify.Sender = notify.LogSender{Logger: slog.Default().With("component", "notify")}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
	}

	handler, stopRouter := api.NewRouter(api.Deps{
		DB:                 database,
		Ledger:             l,
		Dispatcher:         &command.Dispatcher{Inventory: l},
		Notifier:           notifier,
		JWTSecret:          jwtSecret,
		Metrics:            collector,
		Gatherer:           reg,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Info: api.ServiceInfo{
			Name:        cfg.AppName,
			Version:     cfg.AppVersion,
			Description: cfg.AppDescription,
		},
	})
	defer stopRouter()

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr, "version", cfg.AppVersion)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func cmdMigrate(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	commonFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, cleanup, err := setup(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	version, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return err
	}
	fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
