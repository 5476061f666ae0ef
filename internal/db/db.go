package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// photosTable matches the schema the record store reads and writes
const photosTable = `
	CREATE TABLE IF NOT EXISTS photos (
		id SERIAL PRIMARY KEY,
		user_email VARCHAR(255) NOT NULL,
		image_url TEXT NOT NULL,
		ai_comment TEXT NOT NULL,
		emoji VARCHAR(10),
		created_at TIMESTAMPTZ DEFAULT NOW()
	)
`

// tables created before created_at carried a zone held server-local wall
// times; reinterpret them in the session zone
const upgradeCreatedAt = `
	ALTER TABLE photos
	ALTER COLUMN created_at TYPE TIMESTAMPTZ
	USING created_at AT TIME ZONE current_setting('TimeZone')
`

// InitDB initializes the PostgreSQL connection pool
func InitDB(connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	Pool, err = pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := Pool.Ping(context.Background()); err != nil {
		return fmt.Errorf("unable to ping database: %w", err)
	}

	log.Println("Connected to PostgreSQL")
	return nil
}

// Migrate creates the photos table if it does not exist yet
func Migrate(ctx context.Context) error {
	if Pool == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := Pool.Exec(ctx, photosTable); err != nil {
		return fmt.Errorf("create photos table: %w", err)
	}

	var dataType string
	err := Pool.QueryRow(ctx, `
		SELECT data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = 'photos'
		AND column_name = 'created_at'
	`).Scan(&dataType)
	if err != nil {
		return fmt.Errorf("inspect photos.created_at: %w", err)
	}
	if dataType == "timestamp without time zone" {
		if _, err := Pool.Exec(ctx, upgradeCreatedAt); err != nil {
			return fmt.Errorf("upgrade photos.created_at: %w", err)
		}
		log.Println("Upgraded photos.created_at to TIMESTAMPTZ")
	}

	var name string
	err = Pool.QueryRow(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = 'photos'
	`).Scan(&name)
	if err != nil {
		return fmt.Errorf("verify photos table: %w", err)
	}
	log.Println("Verified: photos table exists")
	return nil
}

// CloseDB closes the database connection pool
func CloseDB() {
	if Pool != nil {
		Pool.Close()
	}
}
