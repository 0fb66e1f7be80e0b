package cmd

import (
	"feedrelay/config"
	"feedrelay/db"

	"github.com/urfave/cli/v2"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config/feedrelay.toml",
		Usage:   "Path to the feeds and keywords configuration file",
		EnvVars: []string{"FEEDRELAY_CONFIG"},
	}
}

func dbFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db-driver",
			Usage:   "Database driver (sqlite or postgres)",
			EnvVars: []string{"FEEDRELAY_DB_DRIVER"},
			Value:   db.DriverSQLite,
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "SQLite database file",
			EnvVars: []string{"FEEDRELAY_DATABASE"},
			Value:   "feedrelay.db",
		},
		&cli.StringFlag{
			Name:    "db-host",
			Usage:   "PostgreSQL host",
			EnvVars: []string{"FEEDRELAY_DB_HOST"},
			Value:   "localhost",
		},
		&cli.IntFlag{
			Name:    "db-port",
			Usage:   "PostgreSQL port",
			EnvVars: []string{"FEEDRELAY_DB_PORT"},
			Value:   5432,
		},
		&cli.StringFlag{
			Name:    "db-user",
			Usage:   "PostgreSQL user",
			EnvVars: []string{"FEEDRELAY_DB_USER"},
			Value:   "feedrelay",
		},
		&cli.StringFlag{
			Name:    "db-password",
			Usage:   "PostgreSQL password",
			EnvVars: []string{"FEEDRELAY_DB_PASSWORD"},
			Value:   "feedrelay",
		},
		&cli.StringFlag{
			Name:    "db-name",
			Usage:   "PostgreSQL database name",
			EnvVars: []string{"FEEDRELAY_DB_NAME"},
			Value:   "feedrelay",
		},
	}
}

func dbConfig(ctx *cli.Context) db.Config {
	return db.Config{
		Driver:   ctx.String("db-driver"),
		Path:     ctx.String("database"),
		Host:     ctx.String("db-host"),
		Port:     ctx.Int("db-port"),
		User:     ctx.String("db-user"),
		Password: ctx.String("db-password"),
		Name:     ctx.String("db-name"),
	}
}

// loadConfig reads the configuration file and applies any polling flags that were set
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("shards") {
		cfg.Polling.Shards = ctx.Int("shards")
	}
	if ctx.IsSet("interval") {
		cfg.Polling.Interval.Duration = ctx.Duration("interval")
	}
	if ctx.IsSet("preview-timeout") {
		cfg.Preview.Timeout.Duration = ctx.Duration("preview-timeout")
	}

	return cfg, cfg.Validate()
}

func pollingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "shards",
			Usage:   "Number of feed workers, overrides polling.shards",
			EnvVars: []string{"FEEDRELAY_SHARDS"},
		},
		&cli.DurationFlag{
			Name:    "interval",
			Usage:   "Time between sweeps of a shard, overrides polling.interval",
			EnvVars: []string{"FEEDRELAY_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "preview-timeout",
			Usage:   "Timeout for article preview image lookups, overrides preview.timeout",
			EnvVars: []string{"FEEDRELAY_PREVIEW_TIMEOUT"},
		},
	}
}
