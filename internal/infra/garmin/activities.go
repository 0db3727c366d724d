package garmin

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/nordvik/garminbackup/internal/core/domain"
)

// listBatchSize is the page size used when scanning the activity inventory.
// The API doesn't allow more than a certain number of activities to be
// retrieved per invocation.
const listBatchSize = 100

// startTimeLayout is the format Garmin uses for startTimeGMT values.
const startTimeLayout = "2006-01-02 15:04:05"

// ListActivities returns all activity ids stored by the logged in account,
// along with their starting timestamps. The inventory is fetched in batches
// until an empty page is returned.
func (c *Client) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	var all []domain.Activity
	for start := 0; ; start += listBatchSize {
		batch, err := c.fetchActivityPage(ctx, start, listBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (c *Client) fetchActivityPage(ctx context.Context, start, limit int) ([]domain.Activity, error) {
	c.log.Debug("fetching activities", "start", start, "limit", limit)

	u := c.baseURL + "/modern/proxy/activitylist-service/activities/search/activities?" + url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}.Encode()
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to fetch activities %d through %d: %w", start, start+limit-1, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("garmin: failed to fetch activities %d through %d: %d: %s",
			start, start+limit-1, resp.StatusCode, body)
	}

	var entries []struct {
		ActivityID   int64  `json:"activityId"`
		StartTimeGMT string `json:"startTimeGMT"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("garmin: failed to decode activity list: %w", err)
	}

	activities := make([]domain.Activity, 0, len(entries))
	for _, e := range entries {
		start, err := parseStartTime(e.StartTimeGMT)
		if err != nil {
			return nil, fmt.Errorf("garmin: activity %d: %w", e.ActivityID, err)
		}
		activities = append(activities, domain.Activity{ID: e.ActivityID, Start: start})
	}
	return activities, nil
}

// startTimeLayouts are the timestamp shapes observed across the activity
// list and summary services.
var startTimeLayouts = []string{
	startTimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05.0",
}

func parseStartTime(s string) (time.Time, error) {
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable start time %q", s)
}

// ActivityStart returns the starting timestamp of a single activity, read
// from its summary.
func (c *Client) ActivityStart(ctx context.Context, id int64) (time.Time, error) {
	payload, err := c.fetchJSON(ctx, id, fmt.Sprintf("%s/modern/proxy/activity-service/activity/%d", c.baseURL, id))
	if err != nil {
		return time.Time{}, err
	}
	var summary struct {
		SummaryDTO struct {
			StartTimeGMT string `json:"startTimeGMT"`
		} `json:"summaryDTO"`
	}
	if err := json.Unmarshal(payload, &summary); err != nil {
		return time.Time{}, fmt.Errorf("garmin: failed to decode summary for activity %d: %w", id, err)
	}
	start, err := parseStartTime(summary.SummaryDTO.StartTimeGMT)
	if err != nil {
		return time.Time{}, fmt.Errorf("garmin: activity %d: %w", id, err)
	}
	return start, nil
}

// Export returns one representation of an activity. A (nil, nil) return
// means the remote side has no export of that format for the activity, for
// example a manually entered activity that has no FIT source.
func (c *Client) Export(ctx context.Context, id int64, f domain.Format) ([]byte, error) {
	switch f {
	case domain.FormatJSONSummary:
		return c.fetchJSON(ctx, id, fmt.Sprintf("%s/modern/proxy/activity-service/activity/%d", c.baseURL, id))
	case domain.FormatJSONDetails:
		return c.fetchJSON(ctx, id, fmt.Sprintf("%s/modern/proxy/activity-service/activity/%d/details", c.baseURL, id))
	case domain.FormatGPX:
		return c.fetchExportFile(ctx, id, "gpx", http.StatusNotFound, http.StatusNoContent)
	case domain.FormatTCX:
		return c.fetchExportFile(ctx, id, "tcx", http.StatusNotFound)
	case domain.FormatFIT:
		return c.fetchFIT(ctx, id)
	default:
		return nil, fmt.Errorf("garmin: unsupported export format %q", f)
	}
}

// fetchJSON retrieves a JSON document and re-encodes it pretty-printed for
// the backup file.
func (c *Client) fetchJSON(ctx context.Context, id int64, u string) ([]byte, error) {
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to fetch json for activity %d: %w", id, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("garmin: failed to fetch json for activity %d: %d: %s", id, resp.StatusCode, body)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("garmin: failed to decode json for activity %d: %w", id, err)
	}
	pretty, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to encode json for activity %d: %w", id, err)
	}
	return pretty, nil
}

// fetchExportFile retrieves a gpx or tcx export through the download
// service. The listed status codes indicate that no such export exists for
// the activity.
func (c *Client) fetchExportFile(ctx context.Context, id int64, kind string, absentStatuses ...int) ([]byte, error) {
	u := fmt.Sprintf("%s/modern/proxy/download-service/export/%s/activity/%d", c.baseURL, kind, id)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("garmin: failed to fetch %s for activity %d: %w", kind, id, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	for _, status := range absentStatuses {
		if resp.StatusCode == status {
			return nil, nil
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("garmin: failed to fetch %s for activity %d: %d: %s", kind, id, resp.StatusCode, body)
	}
	return body, nil
}

// fetchFIT returns the FIT representation of an activity by downloading the
// originally uploaded file. If the original wasn't a FIT file (the activity
// was uploaded as gpx/tcx, or entered manually) there is no FIT export.
func (c *Client) fetchFIT(ctx context.Context, id int64) ([]byte, error) {
	format, data, err := c.fetchOriginal(ctx, id)
	if err != nil {
		return nil, err
	}
	if format != "fit" {
		return nil, nil
	}
	return data, nil
}

// fetchOriginal returns the file type and contents of the originally
// uploaded activity file, or ("", nil) when the activity has no file source.
func (c *Client) fetchOriginal(ctx context.Context, id int64) (string, []byte, error) {
	u := fmt.Sprintf("%s/modern/proxy/download-service/files/activity/%d", c.baseURL, id)
	resp, err := c.get(ctx, u)
	if err != nil {
		return "", nil, fmt.Errorf("garmin: failed to fetch original file for activity %d: %w", id, err)
	}
	body, err := readBody(resp)
	if err != nil {
		return "", nil, err
	}
	// A 404 is a clear indicator of a missing original file. As of lately
	// the endpoint responds with 500 "NullPointerException" for activities
	// without one.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusInternalServerError {
		return "", nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("garmin: failed to fetch original file for activity %d: %d: %s",
			id, resp.StatusCode, body)
	}

	// The archive should hold a single entry named after the activity id.
	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", nil, fmt.Errorf("garmin: failed to open original file archive for activity %d: %w", id, err)
	}
	for _, entry := range archive.File {
		name := entry.Name
		ext := path.Ext(name)
		if strings.TrimSuffix(name, ext) != strconv.FormatInt(id, 10) {
			continue
		}
		rc, err := entry.Open()
		if err != nil {
			return "", nil, fmt.Errorf("garmin: failed to open archive entry %s: %w", name, err)
		}
		data, err := func() ([]byte, error) {
			defer func() {
				_ = rc.Close()
			}()
			return io.ReadAll(rc)
		}()
		if err != nil {
			return "", nil, fmt.Errorf("garmin: failed to read archive entry %s: %w", name, err)
		}
		return strings.TrimPrefix(ext, "."), data, nil
	}
	return "", nil, nil
}
