package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create trips table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trips (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			destination VARCHAR(255),
			base_currency VARCHAR(3) NOT NULL,
			created_by VARCHAR(36) NOT NULL REFERENCES users(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create participants table. Guests carry no user reference.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS participants (
			id VARCHAR(36) PRIMARY KEY,
			trip_id VARCHAR(36) NOT NULL REFERENCES trips(id),
			user_id VARCHAR(36) REFERENCES users(id),
			name VARCHAR(255) NOT NULL,
			is_guest BOOLEAN NOT NULL DEFAULT FALSE,
			role VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create expenses table. Children are deleted explicitly in the same
	// transaction as the root, so no ON DELETE CASCADE here.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS expenses (
			id VARCHAR(36) PRIMARY KEY,
			trip_id VARCHAR(36) NOT NULL REFERENCES trips(id),
			payer_id VARCHAR(36) NOT NULL REFERENCES participants(id),
			title VARCHAR(255) NOT NULL,
			total_amount NUMERIC(20, 4) NOT NULL,
			currency_code VARCHAR(3) NOT NULL,
			payment_date DATE NOT NULL,
			entry_method VARCHAR(10) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create expense_items table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS expense_items (
			id VARCHAR(36) PRIMARY KEY,
			expense_id VARCHAR(36) NOT NULL REFERENCES expenses(id),
			name VARCHAR(255) NOT NULL,
			price NUMERIC(20, 4) NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create expense_assignments table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS expense_assignments (
			id VARCHAR(36) PRIMARY KEY,
			item_id VARCHAR(36) NOT NULL REFERENCES expense_items(id),
			participant_id VARCHAR(36) NOT NULL REFERENCES participants(id),
			amount NUMERIC(20, 4) NOT NULL,
			UNIQUE (item_id, participant_id)
		)
	`)
	if err != nil {
		return err
	}

	// Create exchange_rates table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS exchange_rates (
			currency_code VARCHAR(3) NOT NULL,
			date_effective DATE NOT NULL,
			rate NUMERIC(20, 8) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (currency_code, date_effective)
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_participants_trip_id ON participants(trip_id)",
		"CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id)",
		"CREATE INDEX IF NOT EXISTS idx_expenses_trip_date ON expenses(trip_id, payment_date)",
		"CREATE INDEX IF NOT EXISTS idx_expense_items_expense_id ON expense_items(expense_id)",
		"CREATE INDEX IF NOT EXISTS idx_expense_assignments_item_id ON expense_assignments(item_id)",
		"CREATE INDEX IF NOT EXISTS idx_expense_assignments_participant ON expense_assignments(participant_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
