// Package service implements the submission flow: it validates user input,
// hands URLs to the backend, seeds the registry with provisional records and
// arms a progress poller for every accepted download identifier.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"vidtrack/internal/backend"
	"vidtrack/internal/consts"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
	"vidtrack/internal/notify"
	"vidtrack/internal/observability"
	"vidtrack/internal/registry"
	"vidtrack/internal/store"
	"vidtrack/pkg/urls"
)

// Backend is the slice of the backend client the service needs.
type Backend interface {
	Info(ctx context.Context, rawURL string) (*backend.VideoInfo, error)
	Download(ctx context.Context, rawURL string, opt backend.DownloadOptions) (string, error)
	PlaylistDownload(ctx context.Context, rawURL string, indices []int, opt backend.DownloadOptions) ([]string, error)
	BatchDownload(ctx context.Context, rawURLs []string, opt backend.DownloadOptions) ([]string, error)
	RedownloadHistory(ctx context.Context, historyID string) (string, error)
}

// Tracker arms progress pollers for accepted downloads.
type Tracker interface {
	Track(ctx context.Context, id string) error
}

// Service accepts download submissions. At most one submission is processed
// at a time; concurrent attempts are rejected rather than queued, mirroring
// a submit control that is disabled while a request is in flight.
type Service struct {
	log     *slog.Logger
	backend Backend
	tracker Tracker
	reg     *registry.Registry
	store   *store.Store
	notify  notify.Notifier
	metrics *observability.Metrics

	inFlight atomic.Bool
}

// New creates a service. The store and metrics may be nil.
func New(
	log *slog.Logger,
	be Backend,
	tracker Tracker,
	reg *registry.Registry,
	st *store.Store,
	notifier notify.Notifier,
	metrics *observability.Metrics,
) *Service {
	return &Service{
		log:     log.With(slog.String("package", "service")),
		backend: be,
		tracker: tracker,
		reg:     reg,
		store:   st,
		notify:  notifier,
		metrics: metrics,
	}
}

// Info fetches metadata for a URL so the caller can present titles, playlist
// entries and available subtitles before committing to a download.
func (s *Service) Info(ctx context.Context, rawURL string) (*backend.VideoInfo, error) {
	rawURL = urls.Normalize(rawURL)
	if !urls.IsValid(rawURL) {
		s.notify.Error("Please enter a valid URL")

		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidURL, rawURL)
	}

	info, err := s.backend.Info(ctx, rawURL)
	if err != nil {
		s.notify.Error(err.Error())

		return nil, fmt.Errorf("fetch info: %w", err)
	}

	return info, nil
}

// Submit starts a single download. The provisional record title is the
// fetched video title when the caller has one, a generic fallback otherwise.
func (s *Service) Submit(ctx context.Context, rawURL, title string, opt backend.DownloadOptions) (string, error) {
	if !s.begin() {
		return "", errs.ErrSubmissionInFlight
	}
	defer s.end()

	log := s.submissionLog("single")

	rawURL = urls.Normalize(rawURL)
	if !urls.IsValid(rawURL) {
		s.notify.Error("Please enter a valid URL")

		return "", fmt.Errorf("%w: %s", errs.ErrInvalidURL, rawURL)
	}

	id, err := s.backend.Download(ctx, rawURL, opt)
	if err != nil {
		log.Warn("download rejected", slog.Any("error", err))
		s.notify.Error(err.Error())

		return "", fmt.Errorf("start download: %w", err)
	}

	if title == "" {
		title = consts.TitleFallback
	}

	s.notify.Success(consts.MsgDownloadStarted)
	s.accept(ctx, log, id, title, rawURL)
	s.recordSubmission("single")

	return id, nil
}

// SubmitPlaylist starts downloads for the selected entries of a playlist.
// Indices address info.PlaylistVideos; entries without a known title get a
// positional one.
func (s *Service) SubmitPlaylist(
	ctx context.Context,
	rawURL string,
	indices []int,
	info *backend.VideoInfo,
	opt backend.DownloadOptions,
) ([]string, error) {
	if !s.begin() {
		return nil, errs.ErrSubmissionInFlight
	}
	defer s.end()

	log := s.submissionLog("playlist")

	rawURL = urls.Normalize(rawURL)
	if !urls.IsValid(rawURL) {
		s.notify.Error("Please enter a valid URL")

		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidURL, rawURL)
	}

	ids, err := s.backend.PlaylistDownload(ctx, rawURL, indices, opt)
	if err != nil {
		log.Warn("playlist download rejected", slog.Any("error", err))
		s.notify.Error(err.Error())

		return nil, fmt.Errorf("start playlist download: %w", err)
	}

	s.notify.Success(fmt.Sprintf("Started downloading %d videos!", len(ids)))

	for idx, id := range ids {
		title := fmt.Sprintf("Video %d", idx+1)
		if info != nil && idx < len(indices) {
			if i := indices[idx]; i >= 0 && i < len(info.PlaylistVideos) && info.PlaylistVideos[i].Title != "" {
				title = info.PlaylistVideos[i].Title
			}
		}

		s.accept(ctx, log, id, title, rawURL)
	}

	s.recordSubmission("playlist")

	return ids, nil
}

// SubmitBatch starts downloads for a newline-separated block of URLs.
// Malformed lines are skipped with a warning instead of failing the batch.
func (s *Service) SubmitBatch(ctx context.Context, raw string, opt backend.DownloadOptions) ([]string, error) {
	if !s.begin() {
		return nil, errs.ErrSubmissionInFlight
	}
	defer s.end()

	log := s.submissionLog("batch")

	lines := urls.SplitList(raw)
	if len(lines) == 0 {
		s.notify.Warning(consts.MsgNoURLs)

		return nil, errs.ErrNoURLs
	}

	valid := make([]string, 0, len(lines))
	for _, line := range lines {
		if !urls.IsValid(line) {
			log.Debug("skipping malformed URL", slog.String("url", line))
			s.notify.Warning(fmt.Sprintf("Invalid URL skipped: %s", urls.Truncate(line, 50)))

			if s.metrics != nil {
				s.metrics.SkippedURLs.Inc()
			}

			continue
		}

		valid = append(valid, line)
	}

	if len(valid) == 0 {
		s.notify.Error(consts.MsgNoValidURLs)

		return nil, errs.ErrNoValidURLs
	}

	ids, err := s.backend.BatchDownload(ctx, valid, opt)
	if err != nil {
		log.Warn("batch download rejected", slog.Any("error", err))
		s.notify.Error(err.Error())

		return nil, fmt.Errorf("start batch download: %w", err)
	}

	s.notify.Success(fmt.Sprintf("Started %d downloads!", len(ids)))

	for idx, id := range ids {
		var url string
		if idx < len(valid) {
			url = valid[idx]
		}

		s.accept(ctx, log, id, fmt.Sprintf("Video %d of %d", idx+1, len(ids)), url)
	}

	s.recordSubmission("batch")

	return ids, nil
}

// Redownload re-runs a past download from the history.
func (s *Service) Redownload(ctx context.Context, entry backend.HistoryEntry) (string, error) {
	if !s.begin() {
		return "", errs.ErrSubmissionInFlight
	}
	defer s.end()

	log := s.submissionLog("redownload")

	id, err := s.backend.RedownloadHistory(ctx, strconv.FormatInt(entry.ID, 10))
	if err != nil {
		log.Warn("redownload rejected", slog.Any("error", err))
		s.notify.Error(err.Error())

		return "", fmt.Errorf("start redownload: %w", err)
	}

	title := entry.Title
	if title == "" {
		title = consts.TitleRedownload
	}

	s.notify.Success(consts.MsgDownloadStarted)
	s.accept(ctx, log, id, title, entry.URL)
	s.recordSubmission("redownload")

	return id, nil
}

// Resume restores resumable downloads from the local state store after a
// restart: unfinished ones get their poller re-armed, retryable failures
// come back in view so a retry can target them.
func (s *Service) Resume(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	recs, err := s.store.Resumable()
	if err != nil {
		return fmt.Errorf("load resumable downloads: %w", err)
	}

	for _, rec := range recs {
		if !s.reg.Add(rec.ID, rec.Title) {
			continue
		}

		s.reg.Update(rec.ID, rec.Snapshot())

		if rec.Status.Terminal() {
			continue
		}

		if err := s.tracker.Track(ctx, rec.ID); err != nil {
			s.log.Warn("cannot resume tracking", slog.String("id", rec.ID), slog.Any("error", err))
		}
	}

	if len(recs) > 0 {
		s.log.Info("resumed downloads", slog.Int("count", len(recs)))
	}

	return nil
}

// accept seeds the registry with a pending record and arms its poller.
func (s *Service) accept(ctx context.Context, log *slog.Logger, id, title, rawURL string) {
	log.Info("download accepted", slog.String("id", id), slog.String("title", title))

	s.reg.Add(id, title)
	if rawURL != "" {
		s.reg.Update(id, entity.ProgressSnapshot{URL: &rawURL})
	}

	s.persist(id)

	if err := s.tracker.Track(ctx, id); err != nil {
		log.Warn("cannot arm poller", slog.String("id", id), slog.Any("error", err))
	}
}

func (s *Service) begin() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.log.Debug("submission already in flight")

		return false
	}

	return true
}

func (s *Service) end() {
	s.inFlight.Store(false)
}

func (s *Service) submissionLog(mode string) *slog.Logger {
	return s.log.With(
		slog.String("submission", uuid.NewString()),
		slog.String("mode", mode),
	)
}

func (s *Service) recordSubmission(mode string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(mode)
	}
}

func (s *Service) persist(id string) {
	if s.store == nil {
		return
	}

	rec, ok := s.reg.Get(id)
	if !ok {
		return
	}

	if err := s.store.Put(rec); err != nil {
		s.log.Warn("cannot persist record", slog.String("id", id), slog.Any("error", err))
	}
}
