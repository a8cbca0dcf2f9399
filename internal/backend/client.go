// Package backend is the typed HTTP client for the video-downloader backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vidtrack/internal/config"
	"vidtrack/internal/consts"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
)

// Client talks to the backend HTTP API.
type Client struct {
	log     *slog.Logger
	http    *http.Client
	baseURL string
}

// New creates a backend client from configuration.
func New(log *slog.Logger, cfg *config.Config) *Client {
	log = log.With(slog.String("package", "backend"))

	return &Client{
		log: log,
		http: &http.Client{
			Timeout:   cfg.Backend.RequestTimeout,
			Transport: newTransport(log),
		},
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
	}
}

// Info fetches metadata for a URL, including playlist detection.
func (c *Client) Info(ctx context.Context, rawURL string) (*VideoInfo, error) {
	var out VideoInfo

	err := c.postJSON(ctx, "/api/info", infoRequest{URL: rawURL}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("info: %w: %s", errs.ErrBackend, out.Error)
	}

	return &out, nil
}

// Download starts a single download and returns the assigned identifier.
func (c *Client) Download(ctx context.Context, rawURL string, opt DownloadOptions) (string, error) {
	var out downloadResponse

	err := c.postJSON(ctx, "/api/download", downloadRequest{URL: rawURL, DownloadOptions: opt}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("download: %w: %s", errs.ErrBackend, out.Error)
	}

	return out.DownloadID, nil
}

// PlaylistDownload starts downloads for selected playlist entries.
func (c *Client) PlaylistDownload(ctx context.Context, rawURL string, indices []int, opt DownloadOptions) ([]string, error) {
	var out downloadIDsResponse

	req := playlistDownloadRequest{URL: rawURL, DownloadOptions: opt, SelectedIndices: indices}

	err := c.postJSON(ctx, "/api/playlist-download", req, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("playlist download: %w: %s", errs.ErrBackend, out.Error)
	}

	return out.DownloadIDs, nil
}

// BatchDownload starts downloads for a list of URLs.
func (c *Client) BatchDownload(ctx context.Context, rawURLs []string, opt DownloadOptions) ([]string, error) {
	var out downloadIDsResponse

	err := c.postJSON(ctx, "/api/batch-download", batchDownloadRequest{URLs: rawURLs, DownloadOptions: opt}, &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("batch download: %w: %s", errs.ErrBackend, out.Error)
	}

	return out.DownloadIDs, nil
}

// Progress fetches one status snapshot for a download identifier. It returns
// errs.ErrDownloadNotFound when the backend reports the distinguished
// not-found condition, meaning the worker has not registered the id yet.
func (c *Client) Progress(ctx context.Context, id string) (entity.ProgressSnapshot, error) {
	var snap entity.ProgressSnapshot

	err := c.getJSON(ctx, "/api/progress/"+url.PathEscape(id), &snap)
	if err != nil {
		return entity.ProgressSnapshot{}, err
	}

	if snap.Error != nil && *snap.Error == consts.BackendNotFoundError && snap.Status == nil {
		return entity.ProgressSnapshot{}, errs.ErrDownloadNotFound
	}

	return snap, nil
}

// Retry re-issues a failed download and returns the backend's retry count.
func (c *Client) Retry(ctx context.Context, id string) (int, error) {
	var out retryResponse

	err := c.postJSON(ctx, "/api/retry/"+url.PathEscape(id), struct{}{}, &out)
	if err != nil {
		return 0, err
	}
	if out.Error != "" {
		return 0, fmt.Errorf("retry: %w: %s", errs.ErrBackend, out.Error)
	}

	return out.RetryCount, nil
}

// ListFiles returns the completed files in the backend library.
func (c *Client) ListFiles(ctx context.Context) ([]FileEntry, error) {
	var out []FileEntry

	err := c.getJSON(ctx, "/api/downloads", &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// FileURL returns the absolute URL a library file can be fetched from.
func (c *Client) FileURL(filename string) string {
	return c.baseURL + "/api/download/file/" + url.PathEscape(filename)
}

// DeleteFile removes a file from the backend library.
func (c *Client) DeleteFile(ctx context.Context, filename string) error {
	return c.deleteJSON(ctx, "/api/delete/"+url.PathEscape(filename))
}

// SupportedSites returns the names of sites the backend can download from.
func (c *Client) SupportedSites(ctx context.Context) ([]string, error) {
	var out []string

	err := c.getJSON(ctx, "/api/supported-sites", &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// History returns one page of the download history.
func (c *Client) History(ctx context.Context, limit, offset int, search string) (*HistoryPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	if search != "" {
		q.Set("search", search)
	}

	var out HistoryPage

	err := c.getJSON(ctx, "/api/history?"+q.Encode(), &out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("history: %w: %s", errs.ErrBackend, out.Error)
	}

	return &out, nil
}

// RedownloadHistory starts a new download for a history entry and returns the
// new identifier.
func (c *Client) RedownloadHistory(ctx context.Context, historyID string) (string, error) {
	var out downloadResponse

	err := c.postJSON(ctx, "/api/history/redownload/"+url.PathEscape(historyID), struct{}{}, &out)
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", fmt.Errorf("redownload: %w: %s", errs.ErrBackend, out.Error)
	}

	return out.DownloadID, nil
}

// DeleteHistory removes one history entry.
func (c *Client) DeleteHistory(ctx context.Context, historyID string) error {
	return c.deleteJSON(ctx, "/api/history/"+url.PathEscape(historyID))
}

// ClearHistory wipes the download history.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.deleteJSON(ctx, "/api/history/clear")
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.do(req, out)
}

func (c *Client) deleteJSON(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	return c.do(req, nil)
}

// do executes the request and decodes the JSON body into out. Non-2xx
// responses surface the backend's error message when the body carries one.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Bodies carry their own error field; the caller inspects it even on
	// non-2xx statuses (the distinguished not-found condition arrives as a
	// 404 with a JSON body).
	if out != nil && len(body) > 0 && json.Valid(body) {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}

		return nil
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Debug("backend rejected request",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode))

		var backendErr errorResponse
		if json.Unmarshal(body, &backendErr) == nil && backendErr.Error != "" {
			return fmt.Errorf("%w: %s", errs.ErrBackend, backendErr.Error)
		}

		return fmt.Errorf("%w: unexpected status %d", errs.ErrBackend, resp.StatusCode)
	}

	return nil
}
