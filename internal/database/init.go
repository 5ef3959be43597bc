package database

import (
	"database/sql"
	"fmt"

	"github.com/isg-automation/scheduler/internal/database/schema"
)

// InitializeDatabase creates all tables this service owns if they don't
// already exist. Every table carries an owner_id column instead of living
// in a per-tenant database, so there is exactly one schema to bootstrap.
func InitializeDatabase(db *sql.DB) error {
	for _, query := range schema.TableDefinitions {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// CleanDatabase drops all tables in reverse dependency order. Used by
// integration tests to reset state between runs.
func CleanDatabase(db *sql.DB) error {
	for i := len(schema.TableNames) - 1; i >= 0; i-- {
		query := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", schema.TableNames[i])
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", schema.TableNames[i], err)
		}
	}
	return nil
}
