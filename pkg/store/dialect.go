package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig selects and parameterizes the database backend.
type DBConfig struct {
	// Type is "sqlite" (default) or "postgres".
	Type string

	// Path is the sqlite database file.
	Path string

	// Postgres connection settings.
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// Open connects to the configured database.
func Open(cfg DBConfig) (*gorm.DB, error) {
	dialector, err := dialect(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

func dialect(cfg DBConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "maple-proxy.db"
		}
		return sqlite.Open(path), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
			cfg.SSLMode,
		)), nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}
