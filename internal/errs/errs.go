// Package errs defines common error variables used across the application.
package errs

import "errors"

// Submission errors.
var (
	// ErrInvalidURL indicates that the submitted URL is not a valid absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoURLs indicates that a batch submission contained no URLs at all.
	ErrNoURLs = errors.New("no urls provided")
	// ErrNoValidURLs indicates that every line of a batch submission was malformed.
	ErrNoValidURLs = errors.New("no valid urls found")
	// ErrSubmissionInFlight indicates that another submission request is still running.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// Tracking errors.
var (
	// ErrDownloadNotFound is the distinguished backend condition meaning the
	// download worker has not registered the identifier yet.
	ErrDownloadNotFound = errors.New("download not found")
	// ErrRecordNotFound indicates that no registry record exists for the identifier.
	ErrRecordNotFound = errors.New("record not found")
	// ErrAlreadyTracking indicates that a poller is already armed for the identifier.
	ErrAlreadyTracking = errors.New("already tracking")
)

// Backend errors.
var (
	// ErrBackend indicates a backend-reported rejection with no message.
	ErrBackend = errors.New("backend request failed")
)

// Store errors.
var (
	// ErrStoreClosed indicates that the state store has been closed.
	ErrStoreClosed = errors.New("store is closed")
)
