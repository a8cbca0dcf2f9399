// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultPollInterval is the delay between polls while a download is active.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultProcessingInterval is the longer delay used while the backend is
	// merging streams, to reduce load during the heavier phase.
	DefaultProcessingInterval = 1 * time.Second
	// DefaultNotFoundInterval is the delay before re-polling an identifier the
	// backend has not registered yet.
	DefaultNotFoundInterval = 1 * time.Second
	// DefaultTransportInterval is the delay before re-polling after a
	// transport-level failure.
	DefaultTransportInterval = 1500 * time.Millisecond
	// DefaultMaxMisses is how many consecutive not-found or transport failures
	// a poller tolerates before giving up on the identifier.
	DefaultMaxMisses = 10
	// DefaultRequestTimeout is the default timeout for backend requests.
	DefaultRequestTimeout = 30 * time.Second
)

// Backend wire values.
const (
	// BackendNotFoundError is the distinguished error string the backend
	// returns while a download worker has not registered its identifier yet.
	BackendNotFoundError = "Download not found"
)

// User-facing messages.
const (
	// MsgTrackingLost is set on a record after the not-found retry ceiling is hit.
	MsgTrackingLost = "Download tracking lost. Check library for completed files."
	// MsgDownloadStarted is shown when a single download is accepted.
	MsgDownloadStarted = "Download started!"
	// MsgRetrying is shown when a retry command is being issued.
	MsgRetrying = "Retrying download..."
	// MsgRecordNotFound is shown when a retry targets an unknown identifier.
	MsgRecordNotFound = "Download not found"
	// MsgNoURLs is shown when a batch submission is empty.
	MsgNoURLs = "Please enter at least one URL"
	// MsgNoValidURLs is shown when every batch line is malformed.
	MsgNoValidURLs = "No valid URLs found"
	// MsgFileDeleted is shown after a library file is removed.
	MsgFileDeleted = "File deleted successfully"
	// MsgHistoryCleared is shown after the download history is wiped.
	MsgHistoryCleared = "History cleared"
)

// Provisional titles used until the backend reports a real one.
const (
	// TitleFallback is the provisional title for a single download.
	TitleFallback = "Video"
	// TitleRedownload is the provisional title for a history redownload.
	TitleRedownload = "Re-downloading..."
)
