// Package view computes presentation state for download records and renders
// the active-download list to a terminal. Projection logic is pure so it can
// be tested without any output device.
package view

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"vidtrack/internal/entity"
)

// Tab identifies the currently visible view. The poller consults it to
// decide whether a completed download should refresh the library listing.
type Tab string

const (
	TabDownload Tab = "download"
	TabBatch    Tab = "batch"
	TabLibrary  Tab = "library"
	TabHistory  Tab = "history"
)

// Icon glyphs per presentation state.
const (
	iconDone     = "✔"
	iconFailed   = "✖"
	iconMerging  = "⚙"
	iconActive   = "↓"
	iconProgress = "█"
	iconTrack    = "░"
)

// Projection is the presentation state derived from one record.
type Projection struct {
	Label        string
	Icon         string
	ProgressText string
	Merging      bool
	ShowRetry    bool
	ShowError    bool
	ShowWarning  bool
}

// Project computes the presentation state for a record:
// retry button iff status=error and the backend marked it retryable,
// error banner iff status=error with a message, warning banner whenever a
// warning is present regardless of status.
func Project(rec entity.DownloadRecord) Projection {
	merging := rec.Merging()

	p := Projection{
		Label:       rec.Status.Label(),
		Merging:     merging,
		ShowRetry:   rec.Status == entity.StatusError && rec.CanRetry,
		ShowError:   rec.Status == entity.StatusError && rec.Error != "",
		ShowWarning: rec.Warning != "",
	}

	switch {
	case rec.Status == entity.StatusCompleted:
		p.Icon = iconDone
	case rec.Status == entity.StatusError:
		p.Icon = iconFailed
	case merging:
		p.Icon = iconMerging
		p.Label = "Merging"
	default:
		p.Icon = iconActive
	}

	if merging {
		p.ProgressText = "Merging video & audio..."
	} else {
		p.ProgressText = fmt.Sprintf("%.1f%%", rec.Progress)
	}

	return p
}

// View holds the tab state and renders record lists.
type View struct {
	mu  sync.RWMutex
	tab Tab
	out io.Writer
}

// New creates a view on the download tab. A nil writer defaults to stdout.
func New(out io.Writer) *View {
	if out == nil {
		out = os.Stdout
	}

	return &View{tab: TabDownload, out: out}
}

// SwitchTab changes the visible tab.
func (v *View) SwitchTab(tab Tab) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.tab = tab
}

// Current returns the visible tab.
func (v *View) Current() Tab {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.tab
}

// Render writes the active-download list. It satisfies registry.Renderer.
func (v *View) Render(records []entity.DownloadRecord) {
	if len(records) == 0 {
		return
	}

	var b strings.Builder
	for _, rec := range records {
		p := Project(rec)

		fmt.Fprintf(&b, "%s %-40s %s %s", p.Icon, trim(rec.Title, 40), bar(rec.Progress, p.Merging), p.ProgressText)
		if rec.Speed != "" || rec.ETA != "" || rec.Filesize != "" {
			fmt.Fprintf(&b, "  %s  %s  %s", orDash(rec.Speed), orDash(rec.ETA), orDash(rec.Filesize))
		}
		fmt.Fprintf(&b, "  [%s]", p.Label)
		if p.ShowRetry {
			fmt.Fprintf(&b, "  (retry available %d/3)", rec.RetryCount)
		}
		b.WriteByte('\n')

		if p.ShowWarning {
			fmt.Fprintf(&b, "    warning: %s\n", rec.Warning)
		}
		if p.ShowError {
			fmt.Fprintf(&b, "    error: %s\n", rec.Error)
		}
	}

	fmt.Fprint(v.out, b.String())
}

func bar(progress float64, merging bool) string {
	const width = 20

	if merging {
		return strings.Repeat(iconMerging, 1) + strings.Repeat(iconTrack, width-1)
	}

	filled := min(width, int(progress/100*width))

	return strings.Repeat(iconProgress, filled) + strings.Repeat(iconTrack, width-filled)
}

func trim(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "--"
	}

	return s
}
