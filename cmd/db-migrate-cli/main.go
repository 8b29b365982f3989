package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/SentimensRG/sigctx"
	"github.com/namsral/flag"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/titpetric/cmsmigrate/db"
	"github.com/titpetric/cmsmigrate/inject"
	"github.com/titpetric/cmsmigrate/migrate"
	"github.com/titpetric/cmsmigrate/migrations"
)

type config struct {
	db struct {
		DSN    string
		Driver string
	}
	Dir     string
	Preview bool
	Status  bool
	Down    int
	Group   string
	Create  string

	Retries          int
	RetryDelay       time.Duration
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	Verbose          bool
}

func main() {
	var config config

	fs := flag.NewFlagSetWithEnvPrefix(os.Args[0], "MIGRATE", flag.ExitOnError)
	fs.String(flag.DefaultConfigFlagname, "", "Path to config file")
	fs.StringVar(&config.db.Driver, "db-driver", db.DefaultDriver, "Database driver (postgres, mysql, sqlite)")
	fs.StringVar(&config.db.DSN, "db-dsn", "", "DSN for database connection")
	fs.StringVar(&config.Dir, "dir", "", "Migration directory, one subdirectory per schema group (default: embedded)")
	fs.BoolVar(&config.Preview, "preview", false, "Print pending migrations without running them")
	fs.BoolVar(&config.Status, "status", false, "Print applied migrations")
	fs.IntVar(&config.Down, "down", 0, "Roll back this many migrations of -group")
	fs.StringVar(&config.Group, "group", "", "Schema group for -down and -create")
	fs.StringVar(&config.Create, "create", "", "Create an empty migration with this title in -dir/-group")
	fs.IntVar(&config.Retries, "retries", 1, "Connection attempts")
	fs.DurationVar(&config.RetryDelay, "retry-delay", 2*time.Second, "Delay between connection attempts")
	fs.DurationVar(&config.ConnectTimeout, "connect-timeout", 30*time.Second, "Connection timeout")
	fs.DurationVar(&config.StatementTimeout, "statement-timeout", migrate.DefaultStatementTimeout, "Timeout for a single migration")
	fs.BoolVar(&config.Verbose, "verbose", false, "Debug logging")
	fs.Parse(os.Args[1:])

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if config.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(sigctx.New(), config, log); err != nil {
		log.Fatalf("An error occured: %+v", err)
	}
}

func run(ctx context.Context, config config, log *logrus.Logger) error {
	if config.Create != "" {
		return create(config, log)
	}

	catalog, err := loadCatalog(config.Dir)
	if err != nil {
		return err
	}

	runner := migrate.NewRunner(catalog, log)
	runner.StatementTimeout = config.StatementTimeout
	runner.IDs = inject.RunIDs()

	options := db.ConnectionOptions{
		Credentials: db.Credentials{
			DSN:    config.db.DSN,
			Driver: config.db.Driver,
		},
		Retries:        config.Retries,
		RetryDelay:     config.RetryDelay,
		ConnectTimeout: config.ConnectTimeout,
	}
	handle, err := db.ConnectWithRetry(ctx, options)
	if err != nil {
		return err
	}

	local, err := db.NewLocal(handle, db.MaskDSN(config.db.DSN), runner)
	if err != nil {
		handle.Close()
		return err
	}
	defer local.Close()

	switch {
	case config.Preview:
		return local.Print(ctx, os.Stdout)
	case config.Status:
		return status(ctx, local, catalog.Groups())
	case config.Down > 0:
		rolledBack, err := local.Down(ctx, migrate.Group(config.Group), config.Down)
		log.Infof("Rolled back %d migrations", len(rolledBack))
		return err
	default:
		applied, err := local.Up(ctx)
		log.Infof("Applied %d migrations", len(applied))
		return err
	}
}

func loadCatalog(dir string) (*migrate.Catalog, error) {
	if dir == "" {
		return migrations.Catalog()
	}
	return db.LoadDir(dir)
}

// status prints the tracking rows of every schema group
func status(ctx context.Context, local *db.Local, groups []migrate.Group) error {
	for _, group := range groups {
		history, err := local.History(ctx, group)
		if err != nil {
			return err
		}
		for _, record := range history {
			appliedAt := "-"
			if record.AppliedAt != nil {
				appliedAt = record.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%s %s_%s %s\n", record.Group, record.Version, record.Name, appliedAt)
		}
	}
	return nil
}

// create writes an up and down script for a new migration
func create(config config, log *logrus.Logger) error {
	if config.Dir == "" || config.Group == "" {
		return errors.New("-create needs -dir and -group")
	}
	up, down, err := migrate.Scaffold(time.Now(), config.Create)
	if err != nil {
		return err
	}

	dir := filepath.Join(config.Dir, config.Group)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, filename := range []string{up, down} {
		filename = filepath.Join(dir, filename)
		contents := fmt.Sprintf("-- %s\n", config.Create)
		if err := os.WriteFile(filename, []byte(contents), 0o644); err != nil {
			return err
		}
		log.Infof("Created %s", filename)
	}
	return nil
}
