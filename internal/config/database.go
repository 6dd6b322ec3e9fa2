package config

import (
	"errors"
	"fmt"
)

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"

	dsnTemplate = "postgres://%v:%v@%v:%d/%v?sslmode=%v"
)

type DatabaseConfig struct {
	Driver string

	// sqlite
	File string

	// postgres
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	RequireSSL         bool
	MaxOpenConnections int

	SkipMigrations bool
}

func (c *DatabaseConfig) Key() string {
	return DATABASE_CONFIG_KEY
}

func (c *DatabaseConfig) Load() error {
	v := newEnv()
	v.SetDefault("DB_DRIVER", DriverSqlite)
	v.SetDefault("DB_FILE", "./data/swap.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_NAME", "swap")
	v.SetDefault("DB_MAX_CONNECTIONS", 10)

	c.Driver = v.GetString("DB_DRIVER")
	c.File = v.GetString("DB_FILE")
	c.Host = v.GetString("DB_HOST")
	c.Port = v.GetInt("DB_PORT")
	c.User = v.GetString("DB_USER")
	c.Password = v.GetString("DB_PASSWORD")
	c.DBName = v.GetString("DB_NAME")
	c.RequireSSL = v.GetBool("DB_REQUIRE_SSL")
	c.MaxOpenConnections = v.GetInt("DB_MAX_CONNECTIONS")
	c.SkipMigrations = v.GetBool("DB_SKIP_MIGRATIONS")
	return c.Validate()
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverSqlite:
		if c.File == "" {
			return errors.New("invalid database config: sqlite file is required")
		}
	case DriverPostgres:
		if c.Host == "" || c.User == "" || c.DBName == "" {
			return errors.New("invalid database config: postgres host, user and name are required")
		}
	default:
		return fmt.Errorf("invalid database config: unknown driver %q", c.Driver)
	}
	return nil
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN(hidePassword bool) string {
	sslMode := "disable"
	if c.RequireSSL {
		sslMode = "require"
	}
	password := c.Password
	if hidePassword {
		password = "****"
	}
	return fmt.Sprintf(dsnTemplate, c.User, password, c.Host, c.Port, c.DBName, sslMode)
}
