package kernel

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mukuvi/mukuvios/pkg/configuration"
	"github.com/mukuvi/mukuvios/pkg/logger"
)

// InitDB opens the SQLite database and verifies the connection.
func InitDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ensure the database is accessible
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// SystemConfig is the persisted installation record. It is written once
// on first boot and read back on every boot after that.
type SystemConfig struct {
	OSName            string
	Version           string
	AdminUser         string
	Locale            string
	MaxUsers          int
	MaxProcesses      int
	MinPasswordLength int
	InstalledAt       time.Time
}

// createSystemConfigTable ensures the system_config table exists.
func createSystemConfigTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS system_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		os_name TEXT NOT NULL,
		version TEXT NOT NULL,
		admin_user TEXT NOT NULL,
		locale TEXT NOT NULL,
		max_users INTEGER NOT NULL,
		max_processes INTEGER NOT NULL,
		min_password_length INTEGER NOT NULL,
		installed_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create system_config table: %w", err)
	}
	return nil
}

// loadOrCreateSystemConfig reads the installation record, writing the
// default record from the configuration file on first boot.
func loadOrCreateSystemConfig(db *sql.DB) (*SystemConfig, error) {
	if err := createSystemConfigTable(db); err != nil {
		return nil, err
	}

	cfg := &SystemConfig{}
	var installedAt int64
	err := db.QueryRow(`SELECT os_name, version, admin_user, locale, max_users, max_processes,
		min_password_length, installed_at FROM system_config WHERE id = 1`).
		Scan(&cfg.OSName, &cfg.Version, &cfg.AdminUser, &cfg.Locale, &cfg.MaxUsers,
			&cfg.MaxProcesses, &cfg.MinPasswordLength, &installedAt)
	if err == nil {
		cfg.InstalledAt = time.Unix(installedAt, 0)
		return cfg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	// First boot: seed the record from the configuration file
	cfg = &SystemConfig{
		OSName:            configuration.GetString("System", "os_name", "MukuviOS"),
		Version:           configuration.GetString("System", "version", "1.0.0"),
		AdminUser:         configuration.GetString("Authentication", "admin_user", "admin"),
		Locale:            configuration.GetString("System", "locale", "en_US"),
		MaxUsers:          configuration.GetInt("System", "max_users", 100),
		MaxProcesses:      configuration.GetInt("System", "max_processes", 1000),
		MinPasswordLength: configuration.GetInt("Authentication", "min_password_length", 4),
		InstalledAt:       time.Now(),
	}

	_, err = db.Exec(`INSERT INTO system_config (id, os_name, version, admin_user, locale,
		max_users, max_processes, min_password_length, installed_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.OSName, cfg.Version, cfg.AdminUser, cfg.Locale, cfg.MaxUsers,
		cfg.MaxProcesses, cfg.MinPasswordLength, cfg.InstalledAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to write system config: %w", err)
	}

	logger.Info(logger.AreaDatabase, "installed system config record for %s %s", cfg.OSName, cfg.Version)
	return cfg, nil
}
