package cmd

import (
	"context"
	"io"
	"os"

	"github.com/antichaos/antichaos/internal/config"
	"github.com/antichaos/antichaos/internal/database"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.antichaos, /etc/antichaos)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "antichaos",
	Short: "AntiChaos tracks well-being across life spheres with one daily question",
	Long: `AntiChaos serves the API of the AntiChaos Telegram mini app: users rate their life spheres,
pick focus spheres and answer one rotating question per day. A scheduler reminds them at their chosen time.`,
	Example: `antichaos serve --config config.yml
  antichaos migrate -c /path/to/config.yml
  antichaos due --at 09:00 --log-level debug`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if err := godotenv.Load(); err == nil {
			log.Debug("Loaded environment from .env")
		}
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	// Create a multi-writer that writes to both console and file
	multiWriter := io.MultiWriter(os.Stderr, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

// loadDatabase reads the configuration and opens the database it points to.
func loadDatabase() (*config.Config, *database.Client) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	return cfg, db
}

func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd, fang.WithVersion(Version))
}
