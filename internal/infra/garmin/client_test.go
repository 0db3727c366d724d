package garmin

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nordvik/garminbackup/internal/core/domain"
)

// installAuth registers the SSO endpoints needed for a successful Dial. The
// base URL isn't known until the server is up, so it is read lazily.
func installAuth(mux *http.ServeMux, base *string) {
	mux.HandleFunc("/sso/signin", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("username") == "" {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `var response_url = "%s/claim?ticket=ST-0123456-aBCDefgh";`, *base)
	})
	mux.HandleFunc("/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ticket") == "" {
			http.Error(w, "no ticket", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "welcome")
	})
	mux.HandleFunc("/legacy/session", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	var base string
	installAuth(mux, &base)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	base = srv.URL

	c, err := Dial(context.Background(), Config{
		Username:   "runner@example.com",
		Password:   "hunter2",
		BaseURL:    srv.URL,
		SSOBaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return c, srv
}

func TestDialRequiresCredentials(t *testing.T) {
	if _, err := Dial(context.Background(), Config{Username: "user"}); err == nil {
		t.Error("Dial should reject a missing password")
	}
	if _, err := Dial(context.Background(), Config{Password: "pass"}); err == nil {
		t.Error("Dial should reject a missing username")
	}
}

func TestDialAuthenticates(t *testing.T) {
	var gotUser, gotPass string
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/sso/signin", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotUser = r.PostForm.Get("username")
		gotPass = r.PostForm.Get("password")
		fmt.Fprintf(w, `var response_url = "%s/claim?ticket=ST-1";`, base)
	})
	mux.HandleFunc("/claim", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "welcome")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	_, err := Dial(context.Background(), Config{
		Username:   "runner@example.com",
		Password:   "hunter2",
		BaseURL:    srv.URL,
		SSOBaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if gotUser != "runner@example.com" || gotPass != "hunter2" {
		t.Errorf("login form carried %q / %q", gotUser, gotPass)
	}
}

func TestDialRejectsBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sso/signin", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{
		Username:   "runner@example.com",
		Password:   "wrong",
		BaseURL:    srv.URL,
		SSOBaseURL: srv.URL,
	})
	if err == nil || !strings.Contains(err.Error(), "authentication failure") {
		t.Errorf("Dial error = %v, want authentication failure", err)
	}
}

func TestDialFailsWithoutTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/sso/signin", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance page, no ticket here</html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := Dial(context.Background(), Config{
		Username:   "runner@example.com",
		Password:   "hunter2",
		BaseURL:    srv.URL,
		SSOBaseURL: srv.URL,
	})
	if err == nil || !strings.Contains(err.Error(), "auth ticket") {
		t.Errorf("Dial error = %v, want auth ticket extraction failure", err)
	}
}

func TestExtractAuthTicketURLStripsEscapes(t *testing.T) {
	got, err := extractAuthTicketURL(`var response_url = "https:\/\/connect.garmin.com\/modern?ticket=ST-1";`)
	if err != nil {
		t.Fatalf("extractAuthTicketURL: %v", err)
	}
	if got != "https://connect.garmin.com/modern?ticket=ST-1" {
		t.Errorf("ticket URL = %q", got)
	}
}

func TestListActivitiesPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/activitylist-service/activities/search/activities", func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start")
		switch start {
		case "0":
			// A full first page forces a second fetch.
			var entries []map[string]any
			for i := 0; i < listBatchSize; i++ {
				entries = append(entries, map[string]any{
					"activityId":   1000 + i,
					"startTimeGMT": "2020-03-10 06:00:00",
				})
			}
			_ = json.NewEncoder(w).Encode(entries)
		case "100":
			fmt.Fprint(w, `[{"activityId": 2000, "startTimeGMT": "2020-03-11T18:30:00.0"}]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	})
	c, _ := newTestClient(t, mux)

	activities, err := c.ListActivities(context.Background())
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(activities) != listBatchSize+1 {
		t.Fatalf("ListActivities returned %d entries, want %d", len(activities), listBatchSize+1)
	}
	if activities[0].ID != 1000 {
		t.Errorf("first activity id = %d, want 1000", activities[0].ID)
	}
	last := activities[len(activities)-1]
	if last.ID != 2000 {
		t.Errorf("last activity id = %d, want 2000", last.ID)
	}
	want := time.Date(2020, 3, 11, 18, 30, 0, 0, time.UTC)
	if !last.Start.Equal(want) {
		t.Errorf("last activity start = %v, want %v", last.Start, want)
	}
}

func TestActivityStart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/activity-service/activity/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"summaryDTO": {"startTimeGMT": "2019-07-04 12:00:00"}}`)
	})
	c, _ := newTestClient(t, mux)

	start, err := c.ActivityStart(context.Background(), 42)
	if err != nil {
		t.Fatalf("ActivityStart: %v", err)
	}
	want := time.Date(2019, 7, 4, 12, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestExportJSONSummaryIsPrettyPrinted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/activity-service/activity/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"activityId":42,"activityName":"Morning Run"}`)
	})
	c, _ := newTestClient(t, mux)

	data, err := c.Export(context.Background(), 42, domain.FormatJSONSummary)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !strings.Contains(string(data), "\n    ") {
		t.Errorf("summary not indented: %q", data)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not valid json: %v", err)
	}
	if doc["activityName"] != "Morning Run" {
		t.Errorf("export content = %v", doc)
	}
}

func TestExportGPXAndTCX(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/download-service/export/gpx/activity/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<gpx/>")
	})
	mux.HandleFunc("/modern/proxy/download-service/export/gpx/activity/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/modern/proxy/download-service/export/gpx/activity/3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/modern/proxy/download-service/export/tcx/activity/4", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c, _ := newTestClient(t, mux)

	data, err := c.Export(context.Background(), 1, domain.FormatGPX)
	if err != nil || string(data) != "<gpx/>" {
		t.Errorf("Export gpx = %q, %v", data, err)
	}

	// 404 and 204 both mean the activity has no gpx representation.
	for _, id := range []int64{2, 3} {
		data, err = c.Export(context.Background(), id, domain.FormatGPX)
		if err != nil || data != nil {
			t.Errorf("Export gpx of %d = %q, %v; want absent", id, data, err)
		}
	}

	data, err = c.Export(context.Background(), 4, domain.FormatTCX)
	if err != nil || data != nil {
		t.Errorf("Export tcx = %q, %v; want absent", data, err)
	}
}

func zipOf(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		t.Fatalf("zip.Create: %v", err)
	}
	if _, err := f.Write(content); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}

func TestExportFIT(t *testing.T) {
	fit := []byte{0x0e, 0x10, 0x43, 0x08}
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/download-service/files/activity/10", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipOf(t, "10.fit", fit))
	})
	// An activity uploaded as gpx has no FIT source.
	mux.HandleFunc("/modern/proxy/download-service/files/activity/11", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipOf(t, "11.gpx", []byte("<gpx/>")))
	})
	mux.HandleFunc("/modern/proxy/download-service/files/activity/12", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	// The endpoint 500s for manually entered activities.
	mux.HandleFunc("/modern/proxy/download-service/files/activity/13", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "NullPointerException", http.StatusInternalServerError)
	})
	c, _ := newTestClient(t, mux)

	data, err := c.Export(context.Background(), 10, domain.FormatFIT)
	if err != nil {
		t.Fatalf("Export fit: %v", err)
	}
	if !bytes.Equal(data, fit) {
		t.Errorf("fit data = %v, want %v", data, fit)
	}

	for _, id := range []int64{11, 12, 13} {
		data, err = c.Export(context.Background(), id, domain.FormatFIT)
		if err != nil || data != nil {
			t.Errorf("Export fit of %d = %q, %v; want absent", id, data, err)
		}
	}
}

func TestUpload(t *testing.T) {
	var gotNK string
	var metadata map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/upload-service/upload/.fit", func(w http.ResponseWriter, r *http.Request) {
		gotNK = r.Header.Get("nk")
		if _, _, err := r.FormFile("data"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"detailedImportResult": {"successes": [{"internalId": 777}], "failures": []}}`)
	})
	mux.HandleFunc("/proxy/activity-service/activity/777", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&metadata)
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := newTestClient(t, mux)

	id, err := c.Upload(context.Background(), "ride.fit", bytes.NewReader([]byte{0x0e}), "", UploadOptions{
		Name:         "Evening Ride",
		ActivityType: "cycling",
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if id != 777 {
		t.Errorf("Upload id = %d, want 777", id)
	}
	if gotNK != "NT" {
		t.Errorf("nk header = %q, want NT", gotNK)
	}
	if metadata["activityName"] != "Evening Ride" {
		t.Errorf("metadata = %v", metadata)
	}
}

func TestUploadReportsImportFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/modern/proxy/upload-service/upload/.fit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"detailedImportResult": {"successes": [], "failures": [{"messages": ["Duplicate Activity"]}]}}`)
	})
	c, _ := newTestClient(t, mux)

	if _, err := c.Upload(context.Background(), "ride.fit", bytes.NewReader([]byte{0x0e}), "fit", UploadOptions{}); err == nil {
		t.Error("Upload should surface import failures")
	}
}

func TestUploadRejectsUnknownExtension(t *testing.T) {
	c, _ := newTestClient(t, http.NewServeMux())
	if _, err := c.Upload(context.Background(), "notes.txt", bytes.NewReader(nil), "", UploadOptions{}); err == nil {
		t.Error("Upload should reject files whose type cannot be guessed")
	}
}
