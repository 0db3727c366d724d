package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nordvik/garminbackup/internal/infra/garmin"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's activity inventory",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
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

	activities, err := client.ListActivities(ctx)
	if err != nil {
		return fmt.Errorf("failed to list activities: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACTIVITY\tSTART")
	for _, a := range activities {
		_, _ = fmt.Fprintf(w, "%d\t%s\n", a.ID, a.Start.Format(time.RFC3339))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	log.Info("account inventory listed", "activities", len(activities))
	return nil
}
