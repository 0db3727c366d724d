package garmin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// UploadOptions carries optional metadata to set on an uploaded activity.
type UploadOptions struct {
	Name        string
	Description string
	// ActivityType is a lowercase activityType key, e.g. "running".
	ActivityType string
	Private      bool
}

// Upload sends a GPX, TCX or FIT file to the account and returns the id of
// the newly created activity. The format is guessed from the file name when
// empty.
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader, format string, opts UploadOptions) (int64, error) {
	base := filepath.Base(filename)
	if format == "" {
		ext := strings.ToLower(filepath.Ext(base))
		switch ext {
		case ".gpx", ".tcx", ".fit":
			format = ext[1:]
		default:
			return 0, fmt.Errorf("garmin: could not guess file type for %s", base)
		}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("data", base)
	if err != nil {
		return 0, fmt.Errorf("garmin: failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return 0, fmt.Errorf("garmin: failed to read upload content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("garmin: failed to finish upload form: %w", err)
	}

	u := fmt.Sprintf("%s/modern/proxy/upload-service/upload/.%s", c.baseURL, format)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return 0, fmt.Errorf("garmin: failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("nk", "NT")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("garmin: upload request failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return 0, err
	}

	var result struct {
		DetailedImportResult struct {
			Successes []struct {
				InternalID int64 `json:"internalId"`
			} `json:"successes"`
			Failures []json.RawMessage `json:"failures"`
		} `json:"detailedImportResult"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("garmin: failed to upload %s: %d: %s", format, resp.StatusCode, body)
	}
	imported := result.DetailedImportResult
	if len(imported.Failures) > 0 || len(imported.Successes) < 1 {
		return 0, fmt.Errorf("garmin: failed to upload %s: %d: %s", format, resp.StatusCode, body)
	}
	if len(imported.Successes) > 1 {
		return 0, fmt.Errorf("garmin: uploading %s resulted in %d activities", format, len(imported.Successes))
	}
	activityID := imported.Successes[0].InternalID

	if err := c.setActivityMetadata(ctx, activityID, opts); err != nil {
		return 0, err
	}
	return activityID, nil
}

func (c *Client) setActivityMetadata(ctx context.Context, id int64, opts UploadOptions) error {
	data := map[string]any{}
	if opts.Name != "" {
		data["activityName"] = opts.Name
	}
	if opts.Description != "" {
		data["description"] = opts.Description
	}
	if opts.ActivityType != "" {
		data["activityTypeDTO"] = map[string]string{"typeKey": opts.ActivityType}
	}
	if opts.Private {
		data["privacy"] = map[string]string{"typeKey": "private"}
	}
	if len(data) == 0 {
		return nil
	}
	data["activityId"] = id

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("garmin: failed to encode metadata for activity %d: %w", id, err)
	}
	u := fmt.Sprintf("%s/proxy/activity-service/activity/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("garmin: failed to build metadata request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("garmin: metadata request failed: %w", err)
	}
	body, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("garmin: failed to set metadata for activity %d: %d: %s", id, resp.StatusCode, body)
	}
	return nil
}
