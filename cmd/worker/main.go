package main

import (
	"chupload/core/ledger"
	"chupload/core/workers"
	"chupload/pkg/config"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const (
	ConfigFlag = "config"
	LimitFlag  = "limit"
)

func loadConfig(c *cli.Context) (config.AppConfig, error) {
	path := c.String(ConfigFlag)
	log.Info().Str("config", path).Msg("loading config")

	return config.Load(path)
}

type ArchiveRunner struct{}

func (s *ArchiveRunner) Run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return workers.ArchiveSupervisor(ctx, cfg)
}

type ReconcileRunner struct{}

func (s *ReconcileRunner) Run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	return workers.Reconcile(c.Context, cfg, c.Int(LimitFlag))
}

type MigrateRunner struct{}

func (s *MigrateRunner) Run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	db, err := workers.OpenDB(c.Context, cfg.DbName)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := ledger.Open(c.Context, db); err != nil {
		return err
	}

	log.Info().Str("db", cfg.DbName).Msg("database schema migration success")
	return nil
}

func main() {
	archiveCmd := &ArchiveRunner{}
	reconcileCmd := &ReconcileRunner{}
	migrateCmd := &MigrateRunner{}

	app := &cli.App{
		Name:  "chupload-worker",
		Usage: "background jobs for chupload",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    ConfigFlag,
				Aliases: []string{"c"},
				EnvVars: []string{"CHUPLOAD_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "archive",
				Usage:  "copy completed uploads to the archive bucket",
				Action: archiveCmd.Run,
			},
			{
				Name:  "reconcile",
				Usage: "requeue completed uploads that were never archived",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  LimitFlag,
						Value: ledger.DefaultLimit,
					},
				},
				Action: reconcileCmd.Run,
			},
			{
				Name:   "migrate",
				Usage:  "create the ledger schema",
				Action: migrateCmd.Run,
			},
		},
	}

	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}
