package cmd

import (
	"github.com/antichaos/antichaos/internal/api"
	"github.com/antichaos/antichaos/internal/engine"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmdFlags struct {
	BotCommands bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AntiChaos server",
	Long: `Start the AntiChaos API server together with the reminder scheduler and the bot command poller.
Only one process per database may run the reminder job, disable it on replicas with reminder.enabled: false.`,
	Example: `antichaos serve --config config.yml
antichaos serve -c /path/to/config.yml --log-level debug
antichaos serve --bot-commands=false
`,
	Run: startServer,
}

func init() {
	serveCmd.Flags().BoolVar(&serveCmdFlags.BotCommands, "bot-commands", true, "Answer /start messages by long polling the bot API")
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, db := loadDatabase()
	defer db.Close() //nolint:errcheck

	ctx := cmd.Context()

	if err := db.SeedCatalog(ctx); err != nil {
		log.Fatalf("failed to seed catalog: %v", err)
	}

	e, err := engine.New(cfg, db)
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer e.Close() //nolint:errcheck

	server, err := api.New(cfg, db, e, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting API server", "listen", cfg.Listen)
		return server.Run(gctx)
	})
	if serveCmdFlags.BotCommands {
		g.Go(func() error {
			e.GetCommandHandler().Run(gctx)
			return nil
		})
	}

	log.Info("antichaos started successfully")
	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return
	}
	log.Info("shutting down gracefully...")
}
