// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"

	"vidtrack/pkg/ptr"
)

// DownloadStatus represents the backend-reported status of a download.
type DownloadStatus string

const (
	// StatusPending indicates that the download is registered but not yet picked up by a worker.
	StatusPending DownloadStatus = "pending"
	// StatusStarting indicates that the download worker is initializing.
	StatusStarting DownloadStatus = "starting"
	// StatusDownloading indicates that the download is in progress.
	StatusDownloading DownloadStatus = "downloading"
	// StatusProcessing indicates that the backend is merging or post-processing streams.
	StatusProcessing DownloadStatus = "processing"
	// StatusCompleted indicates that the download finished successfully.
	StatusCompleted DownloadStatus = "completed"
	// StatusError indicates that the download failed.
	StatusError DownloadStatus = "error"
)

// Terminal reports whether no further progress will be reported for this
// status, absent a user-triggered retry.
func (s DownloadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Label returns the display label for the status.
func (s DownloadStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusStarting:
		return "Starting"
	case StatusDownloading:
		return "Downloading"
	case StatusProcessing:
		return "Processing"
	case StatusCompleted:
		return "Completed"
	case StatusError:
		return "Error"
	default:
		return string(s)
	}
}

// DownloadRecord is the client-side view of one active or recently-active
// download. The ID is backend-assigned and never changes for the lifetime of
// the record.
type DownloadRecord struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	URL        string         `json:"url,omitempty"`
	Status     DownloadStatus `json:"status"`
	Progress   float64        `json:"progress"`
	Speed      string         `json:"speed,omitempty"`
	ETA        string         `json:"eta,omitempty"`
	Filesize   string         `json:"filesize,omitempty"`
	IsMerging  bool           `json:"is_merging,omitempty"`
	Error      string         `json:"error,omitempty"`
	Warning    string         `json:"warning,omitempty"`
	CanRetry   bool           `json:"can_retry,omitempty"`
	RetryCount int            `json:"retry_count,omitempty"`
}

// Merging reports whether the record should be presented as merging streams,
// either via the explicit backend flag or the processing status.
func (r *DownloadRecord) Merging() bool {
	return r.IsMerging || r.Status == StatusProcessing
}

// Apply sticky-merges a progress snapshot into the record: fields absent from
// the snapshot retain their previous value.
func (r *DownloadRecord) Apply(snap ProgressSnapshot) {
	if snap.Status != nil {
		r.Status = *snap.Status
	}
	if snap.Progress != nil {
		r.Progress = *snap.Progress
	}
	if snap.Speed != nil {
		r.Speed = *snap.Speed
	}
	if snap.ETA != nil {
		r.ETA = *snap.ETA
	}
	if snap.Filesize != nil {
		r.Filesize = *snap.Filesize
	}
	if snap.Title != nil && *snap.Title != "" {
		r.Title = *snap.Title
	}
	if snap.URL != nil && *snap.URL != "" {
		r.URL = *snap.URL
	}
	if snap.IsMerging != nil {
		r.IsMerging = *snap.IsMerging
	}
	if snap.CanRetry != nil {
		r.CanRetry = *snap.CanRetry
	}
	if snap.RetryCount != nil {
		r.RetryCount = *snap.RetryCount
	}
	if snap.Error != nil {
		r.Error = *snap.Error
	}
	if snap.Warning != nil {
		r.Warning = *snap.Warning
	}
}

// Snapshot converts the record into a full progress snapshot. Used to
// restore a persisted record through the regular merge path.
func (r DownloadRecord) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Status:     ptr.Of(r.Status),
		Progress:   ptr.Of(r.Progress),
		Speed:      ptr.Of(r.Speed),
		ETA:        ptr.Of(r.ETA),
		Filesize:   ptr.Of(r.Filesize),
		Title:      ptr.Of(r.Title),
		URL:        ptr.Of(r.URL),
		IsMerging:  ptr.Of(r.IsMerging),
		CanRetry:   ptr.Of(r.CanRetry),
		RetryCount: ptr.Of(r.RetryCount),
		Error:      ptr.Of(r.Error),
		Warning:    ptr.Of(r.Warning),
	}
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (r DownloadRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("title", r.Title),
		slog.String("status", string(r.Status)),
		slog.Float64("progress", r.Progress),
		slog.Bool("can_retry", r.CanRetry),
		slog.Int("retry_count", r.RetryCount),
	)
}

// ProgressSnapshot is one observation from the backend progress endpoint.
// Fields are pointers so a sticky merge can tell an omitted field apart from
// a zero value.
type ProgressSnapshot struct {
	Status     *DownloadStatus `json:"status,omitempty"`
	Progress   *float64        `json:"progress,omitempty"`
	Speed      *string         `json:"speed,omitempty"`
	ETA        *string         `json:"eta,omitempty"`
	Filesize   *string         `json:"filesize,omitempty"`
	Title      *string         `json:"title,omitempty"`
	URL        *string         `json:"url,omitempty"`
	IsMerging  *bool           `json:"is_merging,omitempty"`
	CanRetry   *bool           `json:"can_retry,omitempty"`
	RetryCount *int            `json:"retry_count,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Warning    *string         `json:"warning,omitempty"`
}

// StatusOrEmpty returns the reported status, or the empty status when the
// snapshot omits it.
func (s ProgressSnapshot) StatusOrEmpty() DownloadStatus {
	return ptr.Deref(s.Status)
}

// TitleOrEmpty returns the reported title, or "" when the snapshot omits it.
func (s ProgressSnapshot) TitleOrEmpty() string {
	return ptr.Deref(s.Title)
}

// ErrorSnapshot builds a snapshot that forces a record into the error status
// with the given message. Used for the lost-tracking transition.
func ErrorSnapshot(msg string) ProgressSnapshot {
	return ProgressSnapshot{
		Status: ptr.Of(StatusError),
		Error:  ptr.Of(msg),
	}
}

// RetrySnapshot builds the snapshot applied after the backend accepts a retry
// command: status back to pending, progress reset, error cleared, retry count
// as reported by the backend.
func RetrySnapshot(retryCount int) ProgressSnapshot {
	return ProgressSnapshot{
		Status:     ptr.Of(StatusPending),
		Progress:   ptr.Of(0.0),
		Error:      ptr.Of(""),
		RetryCount: ptr.Of(retryCount),
	}
}
