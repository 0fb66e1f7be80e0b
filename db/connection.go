package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config describes where the store lives. Path is used by SQLite, the rest by PostgreSQL.
type Config struct {
	Driver   string
	Path     string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

func (c Config) postgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// String describes the database without credentials, for logging
func (c Config) String() string {
	if c.Driver == DriverPostgres {
		return fmt.Sprintf("postgres %s:%d/%s", c.Host, c.Port, c.Name)
	}
	return fmt.Sprintf("sqlite %s", c.Path)
}

func (c Config) flavor() (sqlbuilder.Flavor, error) {
	switch c.Driver {
	case DriverSQLite:
		return sqlbuilder.SQLite, nil
	case DriverPostgres:
		return sqlbuilder.PostgreSQL, nil
	default:
		return 0, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// Open opens a connection pool for the configured driver
func Open(cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return openSQLite(cfg.Path)
	case DriverPostgres:
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(path string) (*sql.DB, error) {
	// Enable foreign keys and WAL mode
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	if _, err := db.Exec(`
		PRAGMA busy_timeout = 5000;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return db, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.postgresURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	return db, nil
}

// Connect opens the store and waits for the database to answer pings, retrying with
// exponential backoff for up to maxWait.
func Connect(ctx context.Context, cfg Config, maxWait time.Duration) (*Store, error) {
	flavor, err := cfg.flavor()
	if err != nil {
		return nil, err
	}

	conn, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = maxWait

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conn.PingContext(pingCtx)
	}
	notify := func(err error, next time.Duration) {
		log.WithFields(log.Fields{
			"database": cfg.String(),
			"retryIn":  next,
		}).Warnf("Database not reachable: %v", err)
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database %s not reachable: %w", cfg, err)
	}

	log.WithField("database", cfg.String()).Info("Connected to database")
	return New(conn, flavor), nil
}
