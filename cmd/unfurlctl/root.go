package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	infraconfig "github.com/jonesrussell/north-cloud/unfurl/infrastructure/config"
	infralogger "github.com/jonesrussell/north-cloud/unfurl/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/unfurl/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/unfurl/internal/config"
	"github.com/jonesrussell/north-cloud/unfurl/internal/database"
	"github.com/jonesrussell/north-cloud/unfurl/internal/publisher"
)

const cliVersion = "dev"

type globalFlags struct {
	configPath string
	debug      bool
}

// deps are built lazily so that --help never touches the database.
type deps struct {
	cfg        *config.Config
	log        infralogger.Logger
	db         *sqlx.DB
	components *bootstrap.Components
}

func (d *deps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
	_ = d.log.Sync()
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "unfurlctl",
		Short:         "Operate the unfurl feed pipeline",
		Long:          `Inspect feeds and articles, run feeds and drive due retries without going through the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config",
		infraconfig.GetConfigPath(config.DefaultConfigPath), "path to configuration file")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unfurlctl version %s\n", cliVersion)
		},
	})
	root.AddCommand(newFeedsCommand(flags))
	root.AddCommand(newArticlesCommand(flags))
	root.AddCommand(newProcessCommand(flags))
	root.AddCommand(newRetriesCommand(flags))

	return root
}

func loadDeps(ctx context.Context, flags *globalFlags) (*deps, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
	}

	log, err := infralogger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	log = log.With(infralogger.String("service", "unfurlctl"))

	db, err := database.NewPostgresConnection(ctx, cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("database connection: %w", err)
	}

	return &deps{
		cfg:        cfg,
		log:        log,
		db:         db,
		components: bootstrap.SetupComponents(cfg, db, publisher.NewMemoryCache(nil), log),
	}, nil
}
