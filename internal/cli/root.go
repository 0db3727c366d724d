// Package cli wires the garminbackup commands: incremental backup, activity
// listing, single-activity download and activity upload.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nordvik/garminbackup/internal/core/config"
)

var (
	cfgPath  string
	isDebug  bool
	username string
	password string
)

var rootCmd = &cobra.Command{
	Use:   "garminbackup",
	Short: "Incremental backups of Garmin Connect activity history",
	Long: `garminbackup keeps a local directory in sync with a Garmin Connect
account's activity history. Backups are incremental: activities already
stored in the backup directory (or confirmed to have no export of a given
format) are never downloaded again.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Garmin Connect user name or email")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Garmin Connect password (prompted when absent)")
}

// setup loads the environment and config file and builds the logger.
func setup() (*config.AppConfig, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
	slog.SetDefault(log)

	return cfg, log, nil
}

// credentials resolves the account credentials from flags, config and
// environment, prompting for the password as a last resort.
func credentials(cfg *config.AppConfig) (string, string, error) {
	user := username
	if user == "" {
		user = cfg.Garmin.Username
	}
	if user == "" {
		user = os.Getenv("GARMIN_USERNAME")
	}
	if user == "" {
		return "", "", fmt.Errorf("no user name given (use --username, the config file or GARMIN_USERNAME)")
	}

	pass := password
	if pass == "" {
		pass = cfg.Garmin.Password
	}
	if pass == "" {
		pass = os.Getenv("GARMIN_PASSWORD")
	}
	if pass == "" {
		fmt.Fprint(os.Stderr, "Enter password: ")
		entered, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		pass = string(entered)
	}
	return user, pass, nil
}
