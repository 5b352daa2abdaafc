package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/lotus-sign/filsign/pkg/log"
)

const defaultSqliteName = "lotus_sign.db"

// DatabaseConfig selects the key store backend.
//
// sqlite needs only a file name (":memory:" for a throwaway store). For
// postgres fill out the connection fields, or set FILSIGN_DATABASE_URL.
type DatabaseConfig struct {
	URL      string `env:"FILSIGN_DATABASE_URL" env-default:"" yaml:"url" toml:"url"`
	Name     string `env:"FILSIGN_DATABASE_NAME" env-default:"lotus_sign.db" yaml:"name" toml:"name"`
	Schema   string `env:"FILSIGN_DATABASE_SCHEMA" env-default:"" yaml:"schema" toml:"schema"`
	Driver   string `env:"FILSIGN_DATABASE_DRIVER" env-default:"sqlite" yaml:"driver" toml:"driver" validate:"oneof=sqlite postgres"`
	Username string `env:"FILSIGN_DATABASE_USERNAME" env-default:"postgres" yaml:"username" toml:"username"`
	Password string `env:"FILSIGN_DATABASE_PASSWORD" env-default:"" yaml:"password" toml:"password"`
	Host     string `env:"FILSIGN_DATABASE_HOST" env-default:"localhost" yaml:"host" toml:"host"`
	Port     string `env:"FILSIGN_DATABASE_PORT" env-default:"5432" yaml:"port" toml:"port"`
}

// ParseConnectionString parses a "file:" sqlite DSN or a postgres URI.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{
			Name:   parts[0],
			Driver: "sqlite",
		}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	var username, password string
	if user := parsedURL.User; user != nil {
		username = user.Username()
		password, _ = user.Password()
	}

	port := parsedURL.Port()
	if port == "" {
		port = "5432"
	}
	if _, err := strconv.Atoi(port); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", port, err)
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   parsedURL.Query().Get("search_path"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsedURL.Hostname(),
		Port:     port,
	}, nil
}

// ConnectToDB opens the key store database and brings its schema up to
// date: goose migrations for postgres, AutoMigrate for sqlite.
func ConnectToDB(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg = lg.WithName("database")

	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf, lg)
	case "sqlite", "":
		return connectToSqlite(cnf, lg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func gormConfig(cnf DatabaseConfig) *gorm.Config {
	conf := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if cnf.Schema != "" {
		conf.NamingStrategy = schema.NamingStrategy{TablePrefix: cnf.Schema + "."}
	}
	return conf
}

func connectToPostgresql(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg.Debug("connecting to postgresql", "host", cnf.Host, "database", cnf.Name)

	if err := ensurePostgresqlSchema(cnf, lg); err != nil {
		return nil, fmt.Errorf("failed to ensure postgresql schema: %w", err)
	}

	if err := migratePostgres(cnf, lg); err != nil {
		return nil, fmt.Errorf("failed to apply postgresql migrations: %w", err)
	}

	db, err := gorm.Open(postgres.Open(postgresqlDSN(cnf)), gormConfig(cnf))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func connectToSqlite(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	name := cnf.Name
	if name == "" {
		name = defaultSqliteName
	}

	var dsn string
	if name == ":memory:" {
		lg.Debug("connecting to in-memory sqlite")
		dsn = "file::memory:?cache=shared"
	} else {
		lg.Debug("connecting to sqlite", "path", name)
		dsn = fmt.Sprintf("file:%s?cache=shared", name)
	}

	// sqlite has no schemas; the prefix would name another database.
	cnf.Schema = ""
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cnf))
	if err != nil {
		return nil, err
	}

	if err := migrateSqlite(db); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	return db, nil
}

func postgresqlDSN(cnf DatabaseConfig) string {
	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}
	return dsn
}

func ensurePostgresqlSchema(cnf DatabaseConfig, lg log.Logger) error {
	if cnf.Schema == "" {
		return nil
	}

	dbConf := cnf
	dbConf.Schema = ""
	db, err := sqlx.Connect("postgres", postgresqlDSN(dbConf))
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", cnf.Schema); err != nil {
		return fmt.Errorf("error while checking schema existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(cnf.Schema)); err != nil {
		return fmt.Errorf("error while creating schema: %w", err)
	}

	lg.Info("schema created", "schema", cnf.Schema)
	return nil
}

func migratePostgres(cnf DatabaseConfig, lg log.Logger) error {
	db, err := goose.OpenDBWithDriver("postgres", postgresqlDSN(cnf))
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(db, "config/migrations/postgres"); err != nil {
		return err
	}

	lg.Debug("applied migrations")
	return nil
}

func migrateSqlite(db *gorm.DB) error {
	return db.AutoMigrate(&WalletKey{}, &SignedMessageRecord{})
}
