// Package urls provides utility functions for working with URLs.
package urls

import (
	"net/url"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
)

// IsValid checks if the given string is an absolute http(s) URL.
func IsValid(raw string) bool {
	u, err := url.Parse(raw)

	return err == nil && u.Host != "" && (u.Scheme == schemeHTTP || u.Scheme == schemeHTTPS)
}

// Normalize trims spaces, parses and returns the URL in string format.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	return u.String()
}

// SplitList splits a newline-separated block of URLs into trimmed non-empty
// lines, as entered in a batch submission.
func SplitList(raw string) []string {
	var out []string

	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}

// Truncate shortens a URL for display in a warning message.
func Truncate(raw string, max int) string {
	if len(raw) <= max {
		return raw
	}

	return raw[:max] + "..."
}
