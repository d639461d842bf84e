package main

import (
	"context"
	"strings"

	"github.com/koustreak/askdb/internal/config"
	"github.com/koustreak/askdb/internal/filestore/minio"
	"github.com/koustreak/askdb/internal/llm"
	"github.com/koustreak/askdb/internal/logger"
	"github.com/koustreak/askdb/internal/session"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string
}

// dbFlags select the database for chat, ask and schema.
type dbFlags struct {
	dialect string
	dsn     string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dialect, "dialect", "d", "", "database type: postgres, mysql or sqlite (inferred from the DSN when omitted)")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "connection string or SQLite file path (default $ASKDB_DSN)")
}

func (f *dbFlags) resolve() string {
	if strings.TrimSpace(f.dsn) != "" {
		return f.dsn
	}
	return lookupEnv("ASKDB_DSN", "DATABASE_URL")
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "askdb",
		Short:         "Ask questions about your database in plain language",
		Long:          `askdb connects to PostgreSQL, MySQL or SQLite and lets a language model answer questions by writing and running read-only SQL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "env files to load (default ./.env when present)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "json or console")

	root.AddCommand(
		newServeCmd(g),
		newChatCmd(g),
		newAskCmd(g),
		newSchemaCmd(g),
		newVersionCmd(),
	)
	return root
}

// load reads .env files, the config file and the environment, then
// applies flag overrides. Model settings are only validated when
// needModel is set.
func (g *globalFlags) load(needModel bool) (*config.Config, *logger.Logger, error) {
	if err := config.LoadDotEnv(g.envFiles...); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	if needModel {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, logger.New(cfg.Logger()), nil
}

// archiver connects the transcript archive when one is configured.
func archiver(ctx context.Context, cfg *config.Config) (*session.StoreArchiver, error) {
	if !cfg.Archive.Enabled() {
		return nil, nil
	}
	store, err := minio.New(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	return session.NewStoreArchiver(store), nil
}

// startSession builds the model client and opens one session.
func startSession(ctx context.Context, cfg *config.Config, log *logger.Logger, db dbFlags, deps session.Deps) (*session.Session, error) {
	dbCfg, err := cfg.Database(db.dialect, db.resolve())
	if err != nil {
		return nil, err
	}
	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, err
	}
	archive, err := archiver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	deps.LLM = client
	deps.Logger = log
	if archive != nil {
		deps.Archive = archive
	}
	return session.Start(ctx, cfg.Session(dbCfg), deps)
}
