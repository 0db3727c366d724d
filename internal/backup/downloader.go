package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nordvik/garminbackup/internal/core/domain"
	"github.com/nordvik/garminbackup/internal/metrics"
	"github.com/nordvik/garminbackup/internal/retry"
)

// Exporter fetches one representation of an activity from the remote
// account. A (nil, nil) return is the first-class "no such representation"
// outcome: the remote side legitimately has no file of that kind for the
// activity, which is distinct from a failed fetch.
type Exporter interface {
	Export(ctx context.Context, id int64, f domain.Format) ([]byte, error)
}

// Downloader drives per-format exports for single activities through a retry
// policy, writes successful results into the backup directory, and records
// confirmed-absent formats in the not-found ledger.
type Downloader struct {
	exporter Exporter
	policy   retry.Policy[[]byte]
	dir      *Directory
	log      *slog.Logger
}

// NewDownloader creates a Downloader. A nil log discards events.
func NewDownloader(exporter Exporter, policy retry.Policy[[]byte], dir *Directory, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Downloader{exporter: exporter, policy: policy, dir: dir, log: log}
}

// Download fetches an activity in each of the requested formats. The formats
// are attempted independently: a fetch that gives up or fails for one format
// never prevents the remaining formats from being tried. Fetch failures are
// collected and returned joined. A local write or ledger failure is fatal
// and aborts the activity immediately.
func (d *Downloader) Download(ctx context.Context, a domain.Activity, formats []domain.Format) error {
	var fetchErrs []error
	for _, f := range formats {
		fatal, err := d.downloadFormat(ctx, a, f)
		if err == nil {
			continue
		}
		if fatal {
			return err
		}
		fetchErrs = append(fetchErrs, fmt.Errorf("%s: %w", f, err))
	}
	return errors.Join(fetchErrs...)
}

// downloadFormat handles one (activity, format) pair. The bool result marks
// local I/O failures, which the caller must not fold into the per-format
// error collection.
func (d *Downloader) downloadFormat(ctx context.Context, a domain.Activity, f domain.Format) (bool, error) {
	name := domain.ExportFilename(a, f)
	d.log.Debug("fetching export", "activity", a.ID, "format", f)

	payload, err := d.policy.Call(ctx, "export "+f.String(), func(ctx context.Context) ([]byte, error) {
		return d.exporter.Export(ctx, a.ID, f)
	})
	if err != nil {
		metrics.DownloadErrors.WithLabelValues(f.String()).Inc()
		return false, err
	}

	if payload == nil {
		// Confirmed absence: record it so the next run doesn't retry.
		d.log.Info("no export of this format exists for activity", "activity", a.ID, "format", f)
		metrics.NotFoundRecorded.WithLabelValues(f.String()).Inc()
		if err := d.dir.Ledger().Append(name); err != nil {
			return true, err
		}
		return false, nil
	}

	if err := d.dir.WriteFile(name, payload); err != nil {
		return true, err
	}
	metrics.FilesDownloaded.WithLabelValues(f.String()).Inc()
	return false, nil
}
