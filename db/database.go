package db

import (
	"database/sql"
	"fmt"
	"log"

	"cratefm/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	return createTracksTable()
}

func createTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id VARCHAR(128) NOT NULL PRIMARY KEY,
		artist VARCHAR(255) NOT NULL,
		title VARCHAR(255) NOT NULL,
		genre VARCHAR(64),
		duration INT NOT NULL DEFAULT 0,
		bpm DOUBLE NOT NULL,
		` + "`key`" + ` VARCHAR(4) NOT NULL,
		energy TINYINT,
		sections JSON,
		file_path VARCHAR(512),
		album VARCHAR(255),
		year INT,
		label VARCHAR(255),
		inferred BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_tracks_bpm (bpm),
		INDEX idx_tracks_genre (genre),
		INDEX idx_tracks_key (` + "`key`" + `)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}
