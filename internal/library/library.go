// Package library presents the backend's completed files and download
// history, and fetches files from the backend into a local directory.
package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cavaliercoder/grab"

	"vidtrack/internal/backend"
	"vidtrack/internal/config"
	"vidtrack/internal/consts"
	"vidtrack/internal/notify"
	"vidtrack/internal/view"
	"vidtrack/pkg/format"
)

// Backend is the slice of the backend client the library needs.
type Backend interface {
	ListFiles(ctx context.Context) ([]backend.FileEntry, error)
	FileURL(filename string) string
	DeleteFile(ctx context.Context, filename string) error
	SupportedSites(ctx context.Context) ([]string, error)
	History(ctx context.Context, limit, offset int, search string) (*backend.HistoryPage, error)
	DeleteHistory(ctx context.Context, historyID string) error
	ClearHistory(ctx context.Context) error
}

// Library lists and fetches completed downloads.
type Library struct {
	log     *slog.Logger
	cfg     *config.Config
	backend Backend
	view    *view.View
	notify  notify.Notifier

	mu  sync.Mutex
	out io.Writer
}

// New creates a library. Output defaults to stdout.
func New(log *slog.Logger, cfg *config.Config, be Backend, v *view.View, notifier notify.Notifier, out io.Writer) *Library {
	if out == nil {
		out = os.Stdout
	}

	return &Library{
		log:     log.With(slog.String("package", "library")),
		cfg:     cfg,
		backend: be,
		view:    v,
		notify:  notifier,
		out:     out,
	}
}

// Refresh lists the backend's completed files.
func (l *Library) Refresh(ctx context.Context) error {
	files, err := l.backend.ListFiles(ctx)
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(files) == 0 {
		fmt.Fprintln(l.out, "No downloads yet")

		return nil
	}

	for _, f := range files {
		icon := "🎬"
		if format.IsAudioFile(f.Filename) {
			icon = "🎵"
		}

		fmt.Fprintf(l.out, "%s %s  %s  %s\n",
			icon, f.Filename, format.FileSize(f.Size), formatStamp(f.Modified))
	}

	return nil
}

// RefreshIfActive reloads the listing only while the library view is
// visible, so completions elsewhere do not cause extra backend calls.
func (l *Library) RefreshIfActive(ctx context.Context) {
	if l.view == nil || l.view.Current() != view.TabLibrary {
		return
	}

	if err := l.Refresh(ctx); err != nil {
		l.log.Warn("cannot refresh library", slog.Any("error", err))
	}
}

// Fetch downloads a completed file from the backend into the configured
// downloads directory and returns the local path.
func (l *Library) Fetch(ctx context.Context, filename string) (string, error) {
	if err := os.MkdirAll(l.cfg.Dir.Downloads, 0o755); err != nil {
		return "", fmt.Errorf("create downloads dir: %w", err)
	}

	dst := filepath.Join(l.cfg.Dir.Downloads, filepath.Base(filename))

	req, err := grab.NewRequest(dst, l.backend.FileURL(filename))
	if err != nil {
		return "", fmt.Errorf("build fetch request: %w", err)
	}
	req = req.WithContext(ctx)

	log := l.log.With(slog.String("filename", filename))
	log.Info("fetching file", slog.String("dst", dst))

	resp := grab.NewClient().Do(req)

	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			log.Debug("fetch progress",
				slog.Float64("progress", resp.Progress()),
				slog.String("transferred", format.FileSize(resp.BytesComplete())))
		case <-resp.Done:
			if err := resp.Err(); err != nil {
				l.notify.Error(fmt.Sprintf("Fetch failed: %s", err))

				return "", fmt.Errorf("fetch %s: %w", filename, err)
			}

			log.Info("fetch complete", slog.String("size", format.FileSize(resp.BytesComplete())))
			l.notify.Success(fmt.Sprintf("Saved %s", filepath.Base(dst)))

			return dst, nil
		}
	}
}

// Delete removes a completed file from the backend.
func (l *Library) Delete(ctx context.Context, filename string) error {
	if err := l.backend.DeleteFile(ctx, filename); err != nil {
		l.notify.Error(err.Error())

		return fmt.Errorf("delete %s: %w", filename, err)
	}

	l.notify.Success(consts.MsgFileDeleted)
	l.RefreshIfActive(ctx)

	return nil
}

// SupportedSites lists the sites the backend can download from.
func (l *Library) SupportedSites(ctx context.Context) error {
	sites, err := l.backend.SupportedSites(ctx)
	if err != nil {
		return fmt.Errorf("list supported sites: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, site := range sites {
		fmt.Fprintln(l.out, site)
	}

	return nil
}

// History lists a page of the download history, newest first.
func (l *Library) History(ctx context.Context, limit, offset int, search string) error {
	page, err := l.backend.History(ctx, limit, offset, search)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(page.History) == 0 {
		if search != "" {
			fmt.Fprintln(l.out, "No results found")
		} else {
			fmt.Fprintln(l.out, "No download history yet")
		}

		return nil
	}

	for _, e := range page.History {
		fmt.Fprintf(l.out, "#%d  %s  [%s/%s]  %s\n",
			e.ID, e.Title, e.Site, e.FormatType, formatStamp(e.DownloadedAt))
	}

	fmt.Fprintf(l.out, "%d of %d entries\n", len(page.History), page.Total)

	return nil
}

// DeleteHistory removes one history entry.
func (l *Library) DeleteHistory(ctx context.Context, historyID int64) error {
	if err := l.backend.DeleteHistory(ctx, strconv.FormatInt(historyID, 10)); err != nil {
		l.notify.Error(err.Error())

		return fmt.Errorf("delete history entry: %w", err)
	}

	return nil
}

// ClearHistory wipes the download history.
func (l *Library) ClearHistory(ctx context.Context) error {
	if err := l.backend.ClearHistory(ctx); err != nil {
		l.notify.Error(err.Error())

		return fmt.Errorf("clear history: %w", err)
	}

	l.notify.Success(consts.MsgHistoryCleared)

	return nil
}

// formatStamp renders a backend timestamp, which arrives as an RFC 3339
// string, falling back to the raw value when it does not parse.
func formatStamp(raw string) string {
	if raw == "" {
		return "--"
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}

	return format.Date(t)
}
