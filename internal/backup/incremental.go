// Package backup implements incremental backups of remote activity history:
// reconciling the remote inventory against a local backup directory,
// fetching whatever is still missing, and recording exports that the remote
// side confirmed it does not have.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nordvik/garminbackup/internal/core/domain"
	"github.com/nordvik/garminbackup/internal/metrics"
	"github.com/nordvik/garminbackup/internal/retry"
)

// Lister returns the account's full activity inventory. Pagination against
// the remote API is the implementation's concern; callers see a single call.
type Lister interface {
	ListActivities(ctx context.Context) ([]domain.Activity, error)
}

// Client is the remote-account surface an incremental backup needs.
type Client interface {
	Lister
	Exporter
}

// RunConfig controls one incremental backup run.
type RunConfig struct {
	// Dir is the backup directory. Created if absent.
	Dir string
	// Formats are the export formats to back up.
	Formats []domain.Format
	// MaxRetries bounds the retries of each failed remote call. The delay
	// between attempts doubles with every retry, starting at one second.
	MaxRetries int
	// IgnoreErrors keeps the run going past activities that fail.
	IgnoreErrors bool
	// Workers bounds concurrent activity downloads. Values below 2 keep the
	// run strictly sequential.
	Workers int
	// Log receives run events. Nil discards them.
	Log *slog.Logger
}

// Run performs one incremental backup: list the remote inventory, determine
// which activities are missing locally, and download each in the requested
// formats. Already-present files and ledger-recorded absences are never
// fetched again, so re-runs only pick up what is new.
func Run(ctx context.Context, client Client, cfg RunConfig) error {
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("run_id", uuid.NewString())

	start := time.Now()
	defer func() {
		metrics.RunDuration.Observe(time.Since(start).Seconds())
	}()

	policy := retry.Policy[[]byte]{
		Delay:  retry.ExponentialBackoff(time.Second),
		Stop:   retry.MaxRetries(cfg.MaxRetries),
		Errors: retry.SuppressAll(),
		OnRetry: func(op string, _ int, _ time.Duration) {
			metrics.RetryAttempts.WithLabelValues(op).Inc()
		},
		Log: log,
	}

	log.Info("scanning remote activities", "formats", cfg.Formats)
	listPolicy := retry.Policy[[]domain.Activity]{
		Delay:  policy.Delay,
		Stop:   policy.Stop,
		Errors: policy.Errors,
		Log:    log,
	}
	activities, err := listPolicy.Call(ctx, "list activities", func(ctx context.Context) ([]domain.Activity, error) {
		return client.ListActivities(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to list remote activities: %w", err)
	}
	log.Info("remote inventory fetched", "activities", len(activities))

	dir, err := OpenDirectory(cfg.Dir)
	if err != nil {
		return err
	}

	// Snapshot before any writes so files created by this run are never
	// mistaken for pre-existing ones.
	snapshot, err := dir.Snapshot()
	if err != nil {
		return err
	}
	missing := Plan(activities, snapshot, cfg.Formats)
	log.Info("reconciled against backup directory",
		"dir", cfg.Dir,
		"backed_up", len(activities)-len(missing),
		"missing", len(missing))

	downloader := NewDownloader(client, policy, dir, log)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, a := range missing {
		g.Go(func() error {
			log.Info("backing up activity",
				"activity", a.ID,
				"start", a.Start,
				"progress", fmt.Sprintf("%d/%d", i+1, len(missing)))
			if err := downloader.Download(gctx, a, cfg.Formats); err != nil {
				metrics.ActivitiesBackedUp.WithLabelValues("failed").Inc()
				if cfg.IgnoreErrors {
					log.Error("backup of activity failed, continuing", "activity", a.ID, "error", err)
					return nil
				}
				return fmt.Errorf("activity %d: %w", a.ID, err)
			}
			metrics.ActivitiesBackedUp.WithLabelValues("ok").Inc()
			return nil
		})
	}
	return g.Wait()
}
