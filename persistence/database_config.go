package persistence

import (
	"database/sql"
	"errors"
	"os"

	"github.com/go-sql-driver/mysql"
)

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

// ParseDatabaseConfigFromEnv reads DATABASE_DRIVER (default "mysql") and
// DATABASE_ARGS (a driver DSN) from the environment.
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = "mysql"
	}
	args := os.Getenv("DATABASE_ARGS")
	if args == "" {
		return nil, errors.New("environment variable DATABASE_ARGS is not set")
	}
	return &DatabaseConfig{DriverType: driver, DriverArgs: args}, nil
}

// PrepareMysqlDatabase creates the database named in the DSN when it does not
// exist yet, connecting with the DSN's credentials but without a schema.
func PrepareMysqlDatabase(driverArgs string) error {
	cfg, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := cfg.DBName
	cfg.DBName = ""

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` CHARACTER SET utf8mb4")
	return err
}
