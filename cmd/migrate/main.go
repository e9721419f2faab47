package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/zaplink/zaplink/migrations"
)

// Operator CLI over the same embedded migration set the setup saga
// applies. Forward-only: the schema never rolls back, matching the
// saga's no-compensation design.
func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv("DATABASE_DSN"), "postgres DSN")
	action := fs.String("action", "", "up/status/version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*dsn) == "" {
		return errors.New("dsn required (flag or DATABASE_DSN)")
	}
	if strings.TrimSpace(*action) == "" {
		return errors.New("action required")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetBaseFS(migrations.Files)

	db, err := sql.Open("postgres", *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	switch *action {
	case "up":
		return goose.Up(db, ".")
	case "status":
		return goose.Status(db, ".")
	case "version":
		_, err := goose.GetDBVersion(db)
		return err
	default:
		return fmt.Errorf("unknown action %q (schema is forward-only)", *action)
	}
}
