// Package format converts raw numeric and string values into display strings.
package format

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

// Duration renders a duration in seconds as "h:mm:ss" or "m:ss".
// Returns "--:--" for zero or negative input.
func Duration(seconds float64) string {
	if seconds <= 0 {
		return "--:--"
	}

	total := int(seconds)
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}

	return fmt.Sprintf("%d:%02d", mins, secs)
}

// Count renders a view count compactly: 1532 => "1.5K", 2400000 => "2.4M".
func Count(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FileSize renders a byte count with a binary unit: 1536 => "1.50 KB".
func FileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB"}

	exp := int(math.Log(float64(bytes)) / math.Log(1024))
	if exp >= len(units) {
		exp = len(units) - 1
	}

	if exp == 0 {
		return fmt.Sprintf("%d B", bytes)
	}

	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(exp)), units[exp])
}

// Date renders a timestamp for list display.
func Date(t time.Time) string {
	if t.IsZero() {
		return "--"
	}

	return t.Format("Jan 2, 2006 15:04")
}

// audioExts are extensions presented with the audio icon.
var audioExts = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".flac": true,
	".opus": true,
	".ogg":  true,
	".aac":  true,
}

// IsAudioFile reports whether the filename has a known audio extension.
func IsAudioFile(filename string) bool {
	return audioExts[strings.ToLower(filepath.Ext(filename))]
}
