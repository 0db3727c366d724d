package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordvik/garminbackup/internal/backup"
	"github.com/nordvik/garminbackup/internal/core/domain"
	"github.com/nordvik/garminbackup/internal/infra/garmin"
	"github.com/nordvik/garminbackup/internal/metrics"
)

var (
	backupDir    string
	formatNames  []string
	maxRetries   int
	ignoreErrors bool
	workers      int
	metricsAddr  string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Incrementally back up all activities of the account",
	Long: `Downloads every activity of the account that isn't already present in the
backup directory, in each requested export format. Formats confirmed absent
on the remote side are recorded and never retried on later runs.`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVar(&backupDir, "backup-dir", "", "destination directory (default ./activities)")
	backupCmd.Flags().StringSliceVar(&formatNames, "format", nil,
		"export format to back up, repeatable (json_summary, json_details, gpx, tcx, fit; default all)")
	backupCmd.Flags().IntVar(&maxRetries, "max-retries", 0,
		"maximum retries of a failed download, with exponential backoff starting at 1s (default 7)")
	backupCmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "keep going when an activity fails")
	backupCmd.Flags().IntVar(&workers, "workers", 0, "concurrent activity downloads (default 1)")
	backupCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address during the run")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	if backupDir != "" {
		cfg.Backup.Dir = backupDir
	}
	if len(formatNames) > 0 {
		cfg.Backup.Formats = formatNames
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.Backup.MaxRetries = maxRetries
	}
	if cmd.Flags().Changed("ignore-errors") {
		cfg.Backup.IgnoreErrors = ignoreErrors
	}
	if cmd.Flags().Changed("workers") {
		cfg.Backup.Workers = workers
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	formats, err := domain.ParseFormats(cfg.Backup.Formats)
	if err != nil {
		return err
	}

	user, pass, err := credentials(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := metrics.NewServer(cfg.Metrics.Addr)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
	}

	client, err := garmin.Dial(ctx, garmin.Config{
		Username: user,
		Password: pass,
		Log:      log,
	})
	if err != nil {
		return err
	}

	log.Info("backing up formats", "formats", formats)
	if err := backup.Run(ctx, client, backup.RunConfig{
		Dir:          cfg.Backup.Dir,
		Formats:      formats,
		MaxRetries:   cfg.Backup.MaxRetries,
		IgnoreErrors: cfg.Backup.IgnoreErrors,
		Workers:      cfg.Backup.Workers,
		Log:          log,
	}); err != nil {
		log.Error("backup failed", "error", err)
		os.Exit(1)
	}

	log.Info("backup complete", "dir", cfg.Backup.Dir)
	return nil
}
