package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/synctest"

	"vidtrack/internal/backend"
	"vidtrack/internal/config"
	"vidtrack/internal/consts"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
	"vidtrack/internal/registry"
	"vidtrack/internal/store"
	"vidtrack/internal/tracker"
	"vidtrack/pkg/ptr"
)

type fakeBackend struct {
	mu sync.Mutex

	downloadID  string
	downloadErr error
	downloads   []string // URLs passed to Download

	playlistIDs []string

	batchIDs  []string
	batchURLs []string

	block chan struct{} // when set, Download waits on it
}

func (b *fakeBackend) Info(_ context.Context, _ string) (*backend.VideoInfo, error) {
	return &backend.VideoInfo{Title: "Some Video"}, nil
}

func (b *fakeBackend) Download(_ context.Context, rawURL string, _ backend.DownloadOptions) (string, error) {
	if b.block != nil {
		<-b.block
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.downloads = append(b.downloads, rawURL)
	if b.downloadErr != nil {
		return "", b.downloadErr
	}

	return b.downloadID, nil
}

func (b *fakeBackend) PlaylistDownload(_ context.Context, _ string, _ []int, _ backend.DownloadOptions) ([]string, error) {
	return b.playlistIDs, nil
}

func (b *fakeBackend) BatchDownload(_ context.Context, rawURLs []string, _ backend.DownloadOptions) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batchURLs = append([]string(nil), rawURLs...)

	return b.batchIDs, nil
}

func (b *fakeBackend) RedownloadHistory(_ context.Context, _ string) (string, error) {
	return b.downloadID, nil
}

type fakeTracker struct {
	mu  sync.Mutex
	ids []string
}

func (t *fakeTracker) Track(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ids = append(t.ids, id)

	return nil
}

type spyNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	warnings  []string
	infos     []string
}

func (s *spyNotifier) Success(msg string) { s.record(&s.successes, msg) }
func (s *spyNotifier) Error(msg string)   { s.record(&s.errors, msg) }
func (s *spyNotifier) Warning(msg string) { s.record(&s.warnings, msg) }
func (s *spyNotifier) Info(msg string)    { s.record(&s.infos, msg) }

func (s *spyNotifier) record(dst *[]string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*dst = append(*dst, msg)
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestService(be Backend) (*Service, *fakeTracker, *registry.Registry, *spyNotifier) {
	log := testLog()
	reg := registry.New(log, nil, nil)
	tr := &fakeTracker{}
	notifier := &spyNotifier{}

	return New(log, be, tr, reg, nil, notifier, nil), tr, reg, notifier
}

func TestSubmitInvalidURL(t *testing.T) {
	be := &fakeBackend{downloadID: "dl-1"}
	svc, tr, reg, notifier := newTestService(be)

	_, err := svc.Submit(t.Context(), "not a url", "", backend.DefaultOptions())
	if !errors.Is(err, errs.ErrInvalidURL) {
		t.Fatalf("Submit() = %v, want ErrInvalidURL", err)
	}

	if len(be.downloads) != 0 {
		t.Errorf("backend must not be called for an invalid URL")
	}
	if reg.Len() != 0 || len(tr.ids) != 0 {
		t.Errorf("no record or poller must exist after a rejected submission")
	}
	if len(notifier.errors) != 1 {
		t.Errorf("error notifications = %v, want 1", notifier.errors)
	}
}

func TestSubmitSeedsRecordAndArmsPoller(t *testing.T) {
	be := &fakeBackend{downloadID: "dl-1"}
	svc, tr, reg, notifier := newTestService(be)

	id, err := svc.Submit(t.Context(), "https://example.com/watch?v=1", "", backend.DefaultOptions())
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if id != "dl-1" {
		t.Errorf("id = %q, want dl-1", id)
	}

	rec, ok := reg.Get("dl-1")
	if !ok {
		t.Fatalf("record not seeded")
	}
	if rec.Status != entity.StatusPending || rec.Progress != 0 {
		t.Errorf("record = %+v, want pending at 0%%", rec)
	}
	if rec.Title != consts.TitleFallback {
		t.Errorf("title = %q, want fallback without fetched metadata", rec.Title)
	}
	if rec.URL != "https://example.com/watch?v=1" {
		t.Errorf("url = %q, want submitted URL", rec.URL)
	}

	if len(tr.ids) != 1 || tr.ids[0] != "dl-1" {
		t.Errorf("tracked ids = %v, want [dl-1]", tr.ids)
	}
	if len(notifier.successes) != 1 || notifier.successes[0] != consts.MsgDownloadStarted {
		t.Errorf("success notifications = %v", notifier.successes)
	}
}

func TestSubmitBackendRejection(t *testing.T) {
	be := &fakeBackend{downloadErr: errors.New("Unsupported site")}
	svc, tr, reg, notifier := newTestService(be)

	_, err := svc.Submit(t.Context(), "https://example.com/v", "", backend.DefaultOptions())
	if err == nil {
		t.Fatalf("Submit() must surface the rejection")
	}

	if reg.Len() != 0 || len(tr.ids) != 0 {
		t.Errorf("no record or poller must exist after a backend rejection")
	}
	if len(notifier.errors) != 1 || !strings.Contains(notifier.errors[0], "Unsupported site") {
		t.Errorf("error notifications = %v", notifier.errors)
	}
}

func TestSubmitRejectedWhileInFlight(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		be := &fakeBackend{downloadID: "dl-1", block: make(chan struct{})}
		svc, _, _, _ := newTestService(be)

		done := make(chan error, 1)
		go func() {
			_, err := svc.Submit(t.Context(), "https://example.com/a", "", backend.DefaultOptions())
			done <- err
		}()

		synctest.Wait()

		if _, err := svc.Submit(t.Context(), "https://example.com/b", "", backend.DefaultOptions()); !errors.Is(err, errs.ErrSubmissionInFlight) {
			t.Errorf("concurrent Submit() = %v, want ErrSubmissionInFlight", err)
		}

		close(be.block)
		if err := <-done; err != nil {
			t.Errorf("first Submit() failed: %v", err)
		}

		// The guard must release once the first submission finishes.
		if _, err := svc.Submit(t.Context(), "https://example.com/c", "", backend.DefaultOptions()); err != nil {
			t.Errorf("follow-up Submit() failed: %v", err)
		}
	})
}

func TestSubmitBatch(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		batchIDs     []string
		wantErr      error
		wantURLs     []string
		wantWarnings int
	}{
		{
			name:    "empty input",
			input:   "  \n \n",
			wantErr: errs.ErrNoURLs,
		},
		{
			name:         "all malformed",
			input:        "not a url\nftp://example.com/file",
			wantErr:      errs.ErrNoValidURLs,
			wantWarnings: 2,
		},
		{
			name:         "malformed lines skipped",
			input:        "https://example.com/a\nnope\nhttps://example.com/b\n",
			batchIDs:     []string{"dl-1", "dl-2"},
			wantURLs:     []string{"https://example.com/a", "https://example.com/b"},
			wantWarnings: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &fakeBackend{batchIDs: tt.batchIDs}
			svc, tr, reg, notifier := newTestService(be)

			ids, err := svc.SubmitBatch(t.Context(), tt.input, backend.DefaultOptions())

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SubmitBatch() = %v, want %v", err, tt.wantErr)
				}
				if len(be.batchURLs) != 0 {
					t.Errorf("backend must not be called, got %v", be.batchURLs)
				}
				if len(notifier.warnings)+len(notifier.errors) == 0 {
					t.Errorf("a rejected batch must notify the user")
				}

				return
			}

			if err != nil {
				t.Fatalf("SubmitBatch() failed: %v", err)
			}
			if len(ids) != len(tt.batchIDs) {
				t.Fatalf("ids = %v, want %v", ids, tt.batchIDs)
			}

			if fmt.Sprint(be.batchURLs) != fmt.Sprint(tt.wantURLs) {
				t.Errorf("backend URLs = %v, want %v", be.batchURLs, tt.wantURLs)
			}
			if len(notifier.warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", notifier.warnings, tt.wantWarnings)
			}
			for _, w := range notifier.warnings {
				if !strings.HasPrefix(w, "Invalid URL skipped: ") {
					t.Errorf("warning %q must name the skipped URL", w)
				}
			}

			for idx, id := range tt.batchIDs {
				rec, ok := reg.Get(id)
				if !ok {
					t.Fatalf("record %s not seeded", id)
				}

				want := fmt.Sprintf("Video %d of %d", idx+1, len(tt.batchIDs))
				if rec.Title != want {
					t.Errorf("title = %q, want %q", rec.Title, want)
				}
			}
			if len(tr.ids) != len(tt.batchIDs) {
				t.Errorf("tracked ids = %v, want one per download", tr.ids)
			}
		})
	}
}

func TestSubmitBatchTruncatesLongURLInWarning(t *testing.T) {
	longLine := "nope-" + strings.Repeat("x", 100)
	be := &fakeBackend{batchIDs: []string{"dl-1"}}
	svc, _, _, notifier := newTestService(be)

	if _, err := svc.SubmitBatch(t.Context(), longLine+"\nhttps://example.com/a", backend.DefaultOptions()); err != nil {
		t.Fatalf("SubmitBatch() failed: %v", err)
	}

	if len(notifier.warnings) != 1 {
		t.Fatalf("warnings = %v, want 1", notifier.warnings)
	}

	want := "Invalid URL skipped: " + longLine[:50] + "..."
	if notifier.warnings[0] != want {
		t.Errorf("warning = %q, want %q", notifier.warnings[0], want)
	}
}

func TestSubmitPlaylistTitles(t *testing.T) {
	be := &fakeBackend{playlistIDs: []string{"dl-1", "dl-2", "dl-3"}}
	svc, _, reg, notifier := newTestService(be)

	info := &backend.VideoInfo{
		IsPlaylist: true,
		PlaylistVideos: []backend.PlaylistVideo{
			{Title: "First"},
			{Title: "Second"},
			{Title: ""},
		},
	}

	ids, err := svc.SubmitPlaylist(t.Context(), "https://example.com/playlist", []int{0, 2, 5}, info, backend.DefaultOptions())
	if err != nil {
		t.Fatalf("SubmitPlaylist() failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3", ids)
	}

	wantTitles := map[string]string{
		"dl-1": "First",   // index 0 has a title
		"dl-2": "Video 2", // index 2 has an empty title
		"dl-3": "Video 3", // index 5 is out of range
	}
	for id, want := range wantTitles {
		rec, ok := reg.Get(id)
		if !ok {
			t.Fatalf("record %s not seeded", id)
		}
		if rec.Title != want {
			t.Errorf("%s title = %q, want %q", id, rec.Title, want)
		}
	}

	if len(notifier.successes) != 1 || !strings.Contains(notifier.successes[0], "3 videos") {
		t.Errorf("success notifications = %v", notifier.successes)
	}
}

func TestRedownloadUsesHistoryTitle(t *testing.T) {
	be := &fakeBackend{downloadID: "dl-9"}
	svc, tr, reg, _ := newTestService(be)

	entry := backend.HistoryEntry{ID: 7, Title: "Old Favorite", URL: "https://example.com/old"}
	id, err := svc.Redownload(t.Context(), entry)
	if err != nil {
		t.Fatalf("Redownload() failed: %v", err)
	}

	rec, ok := reg.Get(id)
	if !ok {
		t.Fatalf("record not seeded")
	}
	if rec.Title != "Old Favorite" {
		t.Errorf("title = %q, want the history title", rec.Title)
	}
	if len(tr.ids) != 1 {
		t.Errorf("tracked ids = %v, want 1", tr.ids)
	}
}

func TestResumeRearmsUnfinished(t *testing.T) {
	log := testLog()

	st, err := store.Open(log, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	unfinished := entity.DownloadRecord{ID: "dl-1", Title: "Halfway", Status: entity.StatusDownloading, Progress: 40}
	finished := entity.DownloadRecord{ID: "dl-2", Title: "Done", Status: entity.StatusCompleted, Progress: 100}
	retryable := entity.DownloadRecord{ID: "dl-3", Title: "Broken", Status: entity.StatusError, Error: "network error", CanRetry: true}
	for _, rec := range []entity.DownloadRecord{unfinished, finished, retryable} {
		if err := st.Put(rec); err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
	}

	reg := registry.New(log, nil, nil)
	tr := &fakeTracker{}
	svc := New(log, &fakeBackend{}, tr, reg, st, &spyNotifier{}, nil)

	if err := svc.Resume(t.Context()); err != nil {
		t.Fatalf("Resume() failed: %v", err)
	}

	rec, ok := reg.Get("dl-1")
	if !ok {
		t.Fatalf("unfinished record not restored")
	}
	if rec.Status != entity.StatusDownloading || rec.Progress != 40 {
		t.Errorf("restored record = %+v, want prior state", rec)
	}

	if _, ok := reg.Get("dl-2"); ok {
		t.Errorf("finished record must not be restored")
	}

	// A retryable failure comes back in view but gets no poller.
	rec, ok = reg.Get("dl-3")
	if !ok {
		t.Fatalf("retryable record not restored")
	}
	if !rec.CanRetry || rec.Status != entity.StatusError {
		t.Errorf("restored retryable record = %+v", rec)
	}

	if len(tr.ids) != 1 || tr.ids[0] != "dl-1" {
		t.Errorf("tracked ids = %v, want [dl-1] only", tr.ids)
	}
}

// trackingBackend serves both the submission and the polling side so the
// whole accept-poll-complete flow can run against one scripted backend.
type trackingBackend struct {
	fakeBackend

	replies []entity.ProgressSnapshot
	polls   int
}

func (b *trackingBackend) Progress(_ context.Context, _ string) (entity.ProgressSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.polls >= len(b.replies) {
		return entity.ProgressSnapshot{}, fmt.Errorf("poll after terminal status")
	}

	snap := b.replies[b.polls]
	b.polls++

	return snap, nil
}

func (b *trackingBackend) Retry(_ context.Context, _ string) (int, error) {
	return 0, errors.New("not used")
}

// captureRenderer keeps every rendered record list so intermediate states
// can be asserted after the fact.
type captureRenderer struct {
	mu     sync.Mutex
	frames [][]entity.DownloadRecord
}

func (c *captureRenderer) Render(records []entity.DownloadRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.frames = append(c.frames, records)
}

func TestSubmitToCompletionFlow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		be := &trackingBackend{
			fakeBackend: fakeBackend{downloadID: "dl-1"},
			replies: []entity.ProgressSnapshot{
				{Status: ptr.Of(entity.StatusDownloading), Progress: ptr.Of(42.5)},
				{Status: ptr.Of(entity.StatusCompleted), Progress: ptr.Of(100.0), Title: ptr.Of("Some Video")},
			},
		}

		log := testLog()
		renderer := &captureRenderer{}
		reg := registry.New(log, renderer, nil)
		notifier := &spyNotifier{}
		cfg := &config.Config{Poll: config.Poll{
			Interval:           consts.DefaultPollInterval,
			ProcessingInterval: consts.DefaultProcessingInterval,
			NotFoundInterval:   consts.DefaultNotFoundInterval,
			TransportInterval:  consts.DefaultTransportInterval,
			MaxMisses:          consts.DefaultMaxMisses,
		}}
		trk := tracker.New(log, cfg, be, reg, nil, notifier, nil, nil)
		svc := New(log, be, trk, reg, nil, notifier, nil)

		id, err := svc.Submit(t.Context(), "https://example.com/v", "Some Video", backend.DefaultOptions())
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}

		rec, _ := reg.Get(id)
		if rec.Status != entity.StatusPending {
			t.Errorf("status after submit = %s, want pending", rec.Status)
		}

		trk.Wait()

		rec, _ = reg.Get(id)
		if rec.Status != entity.StatusCompleted || rec.Progress != 100 {
			t.Errorf("final record = %+v, want completed at 100%%", rec)
		}
		if be.polls != 2 {
			t.Errorf("polls = %d, want 2 (none after terminal)", be.polls)
		}

		midway := false
		for _, frame := range renderer.frames {
			for _, r := range frame {
				if r.ID == id && r.Status == entity.StatusDownloading && r.Progress == 42.5 {
					midway = true
				}
			}
		}
		if !midway {
			t.Errorf("no rendered frame showed the in-flight 42.5%% state")
		}

		foundToast := false
		for _, msg := range notifier.successes {
			if strings.Contains(msg, "Some Video") {
				foundToast = true
			}
		}
		if !foundToast {
			t.Errorf("success notifications = %v, want a completion toast", notifier.successes)
		}
		if trk.Armed(id) {
			t.Errorf("poller must be disarmed after completion")
		}
	})
}
