package postgres

import (
	"database/sql"
	"fmt"
	"regexp"

	"gardenrelay/config"

	"github.com/lib/pq"
)

var validDBName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CreateDatabase connects to the server's maintenance database and creates
// cfg.DBName if it doesn't exist. env selects credentials as in DSN.
func CreateDatabase(cfg config.PostgresConfig, env string) error {
	if !validDBName.MatchString(cfg.DBName) {
		return fmt.Errorf("invalid database name %q", cfg.DBName)
	}

	// Connect to the default 'postgres' database
	db, err := sql.Open("postgres", cfg.AdminDSN(env))
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	// Check if database exists
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRow(query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return nil
	}

	// Identifiers cannot be bound as parameters
	_, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.DBName))
	if err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}

	return nil
}
