package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
)

const migrationsDir = "migrations"

func main() {
	var (
		action  = flag.String("action", "up", "Migration action: up, down, version, force, create")
		steps   = flag.Int("steps", 0, "Number of migrations to run (0 = all for up, 1 for down)")
		version = flag.Int("version", -1, "Target schema version (force action)")
		name    = flag.String("name", "", "Migration name (create action)")
		dir     = flag.String("dir", migrationsDir, "Directory holding migration files")
	)
	flag.Parse()

	if err := run(*action, *steps, *version, *name, *dir); err != nil {
		slog.Error("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

func run(action string, steps, version int, name, dir string) error {
	if action == "create" {
		if name == "" {
			return fmt.Errorf("migration name is required for create")
		}
		files, err := createMigration(dir, name)
		if err != nil {
			return err
		}
		slog.Info("created migration", "up", files[0], "down", files[1])
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("loading migrations from %s: %w", dir, err)
	}

	switch action {
	case "up":
		err = up(m, steps)
	case "down":
		err = down(m, steps)
	case "version":
		return printVersion(m)
	case "force":
		if version < 0 {
			return fmt.Errorf("force requires -version")
		}
		err = m.Force(version)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("database is up to date")
		return nil
	}
	return err
}

func up(m *migrate.Migrate, steps int) error {
	if steps > 0 {
		return m.Steps(steps)
	}
	return m.Up()
}

func down(m *migrate.Migrate, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return m.Steps(-steps)
}

func printVersion(m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("current schema version", "version", v, "dirty", dirty)
	return nil
}

// createMigration writes an empty up/down pair with the next sequence number.
func createMigration(dir, name string) ([2]string, error) {
	var files [2]string
	seq, err := nextSequence(dir)
	if err != nil {
		return files, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return files, err
	}
	base := fmt.Sprintf("%06d_%s", seq, name)
	files[0] = filepath.Join(dir, base+".up.sql")
	files[1] = filepath.Join(dir, base+".down.sql")
	for _, f := range files {
		if err := os.WriteFile(f, []byte("-- "+name+"\n"), 0o644); err != nil {
			return files, err
		}
	}
	return files, nil
}

// nextSequence returns one past the highest numeric prefix in dir. Files
// without a numeric prefix are ignored.
func nextSequence(dir string) (uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 1, nil
		}
		return 0, err
	}
	var highest uint64
	for _, e := range entries {
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
