package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordvik/garminbackup/internal/backup"
	"github.com/nordvik/garminbackup/internal/core/domain"
	"github.com/nordvik/garminbackup/internal/infra/garmin"
	"github.com/nordvik/garminbackup/internal/retry"
)

var (
	getDestination string
	getFormats     []string
)

// getMaxRetries bounds download retries for single-activity fetches.
const getMaxRetries = 5

var getCmd = &cobra.Command{
	Use:   "get <activity-id>",
	Short: "Download one particular activity",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	getCmd.Flags().StringVar(&getDestination, "destination", "", "destination directory (default ./activities)")
	getCmd.Flags().StringSliceVar(&getFormats, "format", nil, "export format, repeatable (default all)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid activity id %q", args[0])
	}
	formats, err := domain.ParseFormats(getFormats)
	if err != nil {
		return err
	}
	dest := getDestination
	if dest == "" {
		dest = cfg.Backup.Dir
	}

	user, pass, err := credentials(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := garmin.Dial(ctx, garmin.Config{Username: user, Password: pass, Log: log})
	if err != nil {
		return err
	}

	log.Info("fetching activity", "activity", id)
	start, err := client.ActivityStart(ctx, id)
	if err != nil {
		return err
	}

	dir, err := backup.OpenDirectory(dest)
	if err != nil {
		return err
	}
	policy := retry.Policy[[]byte]{
		Delay:  retry.ExponentialBackoff(time.Second),
		Stop:   retry.MaxRetries(getMaxRetries),
		Errors: retry.SuppressAll(),
		Log:    log,
	}
	downloader := backup.NewDownloader(client, policy, dir, log)
	if err := downloader.Download(ctx, domain.Activity{ID: id, Start: start}, formats); err != nil {
		return fmt.Errorf("failed to download activity %d: %w", id, err)
	}
	log.Info("activity downloaded", "activity", id, "dir", dest)
	return nil
}
