package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nordvik/garminbackup/internal/infra/garmin"
)

var (
	uploadFormat      string
	uploadName        string
	uploadDescription string
	uploadType        string
	uploadPrivate     bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload one or more activity files (gpx, tcx or fit)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadFormat, "format", "", "file format; guessed from the file name when empty")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "name for the uploaded activity")
	uploadCmd.Flags().StringVar(&uploadDescription, "description", "", "description for the uploaded activity")
	uploadCmd.Flags().StringVar(&uploadType, "type", "", "activity type key, e.g. running")
	uploadCmd.Flags().BoolVar(&uploadPrivate, "private", false, "mark the uploaded activity as private")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
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

	opts := garmin.UploadOptions{
		Name:         uploadName,
		Description:  uploadDescription,
		ActivityType: uploadType,
		Private:      uploadPrivate,
	}
	for _, path := range args {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		id, err := client.Upload(ctx, path, f, uploadFormat, opts)
		_ = f.Close()
		if err != nil {
			return err
		}
		log.Info("activity uploaded", "file", path, "activity", id)
	}
	return nil
}
