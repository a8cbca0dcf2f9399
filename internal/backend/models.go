package backend

// DownloadOptions are the format options sent with every download-start
// request.
type DownloadOptions struct {
	Quality      string `json:"quality"`
	AudioOnly    bool   `json:"audio_only"`
	AudioFormat  string `json:"audio_format"`
	DownloadSubs bool   `json:"download_subs"`
	SubLang      string `json:"sub_lang"`
	EmbedSubs    bool   `json:"embed_subs"`
}

// DefaultOptions returns the options used when the user picked nothing.
func DefaultOptions() DownloadOptions {
	return DownloadOptions{
		Quality:     "best",
		AudioFormat: "mp3",
		SubLang:     "en",
	}
}

type downloadRequest struct {
	URL string `json:"url"`
	DownloadOptions
}

type playlistDownloadRequest struct {
	URL string `json:"url"`
	DownloadOptions
	SelectedIndices []int `json:"selected_indices"`
}

type batchDownloadRequest struct {
	URLs []string `json:"urls"`
	DownloadOptions
}

type infoRequest struct {
	URL string `json:"url"`
}

type downloadResponse struct {
	DownloadID string `json:"download_id"`
	Error      string `json:"error"`
}

type downloadIDsResponse struct {
	DownloadIDs []string `json:"download_ids"`
	Error       string   `json:"error"`
}

type retryResponse struct {
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PlaylistVideo is one entry of a playlist as reported by the info endpoint.
type PlaylistVideo struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
}

// VideoInfo is the metadata the backend extracts for a URL.
type VideoInfo struct {
	Title              string          `json:"title"`
	Thumbnail          string          `json:"thumbnail"`
	Duration           float64         `json:"duration"`
	Uploader           string          `json:"uploader"`
	ViewCount          int64           `json:"view_count"`
	Description        string          `json:"description"`
	IsPlaylist         bool            `json:"is_playlist"`
	PlaylistVideos     []PlaylistVideo `json:"playlist_videos"`
	AvailableSubtitles []string        `json:"available_subtitles"`
	Error              string          `json:"error"`
}

// FileEntry is one completed file in the backend library.
type FileEntry struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// HistoryEntry is one row of the download history.
type HistoryEntry struct {
	ID           int64  `json:"id"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Site         string `json:"site"`
	FormatType   string `json:"format_type"`
	Thumbnail    string `json:"thumbnail"`
	DownloadedAt string `json:"downloaded_at"`
}

// HistoryPage is a paginated history listing.
type HistoryPage struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
	Error   string         `json:"error"`
}
