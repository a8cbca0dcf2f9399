package backend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"vidtrack/internal/config"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg, err := config.New()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Backend.BaseURL = srv.URL

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	return New(log, cfg), srv
}

func TestProgressNotFoundSentinel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/progress/abc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Download not found"})
	}))

	_, err := client.Progress(t.Context(), "abc")
	if !errors.Is(err, errs.ErrDownloadNotFound) {
		t.Errorf("expected ErrDownloadNotFound, got %v", err)
	}
}

func TestProgressSnapshot(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":   "downloading",
			"progress": 42.5,
			"speed":    "1.2MiB/s",
		})
	}))

	snap, err := client.Progress(t.Context(), "abc")
	if err != nil {
		t.Fatalf("Progress() failed: %v", err)
	}
	if snap.StatusOrEmpty() != entity.StatusDownloading {
		t.Errorf("status = %v", snap.Status)
	}
	if snap.Progress == nil || *snap.Progress != 42.5 {
		t.Errorf("progress = %v, want 42.5", snap.Progress)
	}
	if snap.ETA != nil {
		t.Errorf("omitted eta must decode as nil, got %v", *snap.ETA)
	}
}

func TestProgressTerminalErrorIsNotSentinel(t *testing.T) {
	// A failed download also carries an error message, but with a status.
	// That must not be mistaken for the not-found startup race.
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "error",
			"error":     "Download not found",
			"can_retry": true,
		})
	}))

	snap, err := client.Progress(t.Context(), "abc")
	if err != nil {
		t.Fatalf("Progress() failed: %v", err)
	}
	if snap.StatusOrEmpty() != entity.StatusError {
		t.Errorf("status = %v, want error", snap.Status)
	}
}

func TestDownloadSendsOptions(t *testing.T) {
	var got map[string]any

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/download" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]string{"download_id": "abc"})
	}))

	opt := DownloadOptions{Quality: "1080p", AudioOnly: true, AudioFormat: "m4a", DownloadSubs: true, SubLang: "de", EmbedSubs: true}

	id, err := client.Download(t.Context(), "https://example.com/v", opt)
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if id != "abc" {
		t.Errorf("id = %q, want abc", id)
	}

	wantFields := map[string]any{
		"url":           "https://example.com/v",
		"quality":       "1080p",
		"audio_only":    true,
		"audio_format":  "m4a",
		"download_subs": true,
		"sub_lang":      "de",
		"embed_subs":    true,
	}
	for key, want := range wantFields {
		if got[key] != want {
			t.Errorf("request field %s = %v, want %v", key, got[key], want)
		}
	}
}

func TestPlaylistDownload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)

		indices, ok := req["selected_indices"].([]any)
		if !ok || len(indices) != 2 {
			t.Errorf("selected_indices = %v", req["selected_indices"])
		}
		json.NewEncoder(w).Encode(map[string]any{"download_ids": []string{"a", "b"}})
	}))

	ids, err := client.PlaylistDownload(t.Context(), "https://example.com/pl", []int{0, 2}, DefaultOptions())
	if err != nil {
		t.Fatalf("PlaylistDownload() failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v", ids)
	}
}

func TestRetryRejectionSurfacesMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "Maximum retry attempts reached"})
	}))

	_, err := client.Retry(t.Context(), "abc")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, errs.ErrBackend) {
		t.Errorf("expected ErrBackend, got %v", err)
	}
	if want := "Maximum retry attempts reached"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q must carry the backend message %q", err, want)
	}
}

func TestHistoryQueryParams(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "20" || q.Get("offset") != "40" || q.Get("search") != "cats" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"history": []map[string]any{{"id": 1, "title": "Cats"}},
			"total":   41,
		})
	}))

	page, err := client.History(t.Context(), 20, 40, "cats")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if page.Total != 41 || len(page.History) != 1 || page.History[0].Title != "Cats" {
		t.Errorf("page = %+v", page)
	}
}

func TestFileURL(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	want := srv.URL + "/api/download/file/some%20video.mp4"
	if got := client.FileURL("some video.mp4"); got != want {
		t.Errorf("FileURL() = %q, want %q", got, want)
	}
}
