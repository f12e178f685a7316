// Command migrate applies the embedded schema migrations. With no arguments
// it migrates up; "down" rolls back one step, "version" prints the current
// version, "force <n>" overrides a dirty state.
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/clinovia/clinic-api/internal/config"
	"github.com/clinovia/clinic-api/migrations"
	"github.com/clinovia/clinic-api/pkg/logger"
)

func main() {
	log := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "failed to load configuration")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal(err, "failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err, "failed to ping database")
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal(err, "failed to build database driver")
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.Fatal(err, "failed to read embedded migrations")
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatal(err, "failed to build migrator")
	}
	defer m.Close()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal(err, "migrate up failed")
		}
		log.Info("migrations applied")
	case "down":
		if err := m.Steps(-1); err != nil {
			log.Fatal(err, "migrate down failed")
		}
		log.Info("rolled back one migration")
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal(err, "failed to read version")
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	case "force":
		if len(os.Args) < 3 {
			log.Fatal(nil, "force requires a version argument")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatal(err, "invalid version argument")
		}
		if err := m.Force(version); err != nil {
			log.Fatal(err, "force failed")
		}
		log.Info("forced migration version", "version", version)
	default:
		log.Fatal(nil, "unknown command", "command", command)
	}
}
