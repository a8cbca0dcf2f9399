// Package tracker runs one progress poller per download identifier. A poller
// repeatedly asks the backend for a status snapshot, sticky-merges it into
// the registry, and stops once a terminal status is observed. The backend
// spawns its download worker asynchronously relative to handing out the
// identifier, so early polls may race the worker's registration; the
// not-found branch is an expected startup condition, bounded so a truly
// invalid identifier is not polled forever.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vidtrack/internal/config"
	"vidtrack/internal/consts"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
	"vidtrack/internal/notify"
	"vidtrack/internal/observability"
	"vidtrack/internal/registry"
	"vidtrack/internal/store"
)

// Backend is the slice of the backend client the tracker needs.
type Backend interface {
	Progress(ctx context.Context, id string) (entity.ProgressSnapshot, error)
	Retry(ctx context.Context, id string) (int, error)
}

// LibraryRefresher is asked to reload the library listing when a download
// completes while the library view is visible.
type LibraryRefresher interface {
	RefreshIfActive(ctx context.Context)
}

// Tracker owns the armed pollers. Polls for one identifier are strictly
// sequential; pollers for different identifiers are independent.
type Tracker struct {
	log     *slog.Logger
	cfg     *config.Config
	backend Backend
	reg     *registry.Registry
	store   *store.Store
	notify  notify.Notifier
	library LibraryRefresher
	metrics *observability.Metrics

	mu    sync.Mutex
	armed map[string]struct{}
	group errgroup.Group
}

// New creates a tracker. The store, library refresher and metrics may be nil.
func New(
	log *slog.Logger,
	cfg *config.Config,
	backend Backend,
	reg *registry.Registry,
	st *store.Store,
	notifier notify.Notifier,
	library LibraryRefresher,
	metrics *observability.Metrics,
) *Tracker {
	return &Tracker{
		log:     log.With(slog.String("package", "tracker")),
		cfg:     cfg,
		backend: backend,
		reg:     reg,
		store:   st,
		notify:  notifier,
		library: library,
		metrics: metrics,
		armed:   make(map[string]struct{}),
	}
}

// Track arms a poller for the identifier. It returns ErrAlreadyTracking when
// a poller for the identifier is already armed, so an identifier never has
// two polls in flight at once.
func (t *Tracker) Track(ctx context.Context, id string) error {
	t.mu.Lock()
	if _, ok := t.armed[id]; ok {
		t.mu.Unlock()

		return fmt.Errorf("%w: %s", errs.ErrAlreadyTracking, id)
	}
	t.armed[id] = struct{}{}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordPollerArmed()
	}

	t.group.Go(func() error {
		defer t.disarm(id)
		t.poll(ctx, id)

		return nil
	})

	return nil
}

// Armed reports whether a poller is currently armed for the identifier.
func (t *Tracker) Armed(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.armed[id]

	return ok
}

// Wait blocks until every armed poller has stopped.
func (t *Tracker) Wait() {
	t.group.Wait() //nolint:errcheck // pollers never return errors
}

func (t *Tracker) disarm(id string) {
	t.mu.Lock()
	delete(t.armed, id)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordPollerDisarmed()
	}
}

// poll is the per-identifier loop. Stopping means simply not rescheduling;
// there is no cancellation primitive beyond the context.
func (t *Tracker) poll(ctx context.Context, id string) {
	log := t.log.With(slog.String("id", id))

	misses := 0

	for {
		var stop func()
		if t.metrics != nil {
			t.metrics.PollsTotal.Inc()
			stop = t.metrics.PollTimer()
		}

		snap, err := t.backend.Progress(ctx, id)
		if stop != nil {
			stop()
		}

		switch {
		case errors.Is(err, errs.ErrDownloadNotFound):
			// Startup race: the download worker has not registered the
			// identifier yet.
			misses++
			if t.metrics != nil {
				t.metrics.PollNotFound.Inc()
			}

			if misses >= t.cfg.Poll.MaxMisses {
				t.abandon(log, id)

				return
			}

			log.Debug("progress not found yet",
				slog.Int("attempt", misses),
				slog.Int("max", t.cfg.Poll.MaxMisses))

			if !t.sleep(ctx, t.cfg.Poll.NotFoundInterval) {
				return
			}

			continue
		case err != nil:
			// Transport-level failure: same bounded counter, longer backoff,
			// and a silent stop once exhausted. The user can still find the
			// final state via a manual library check.
			misses++
			if t.metrics != nil {
				t.metrics.PollTransportErrors.Inc()
			}

			if misses >= t.cfg.Poll.MaxMisses {
				log.Warn("giving up on progress polling", slog.Any("error", err))

				return
			}

			log.Debug("progress request failed", slog.Any("error", err), slog.Int("attempt", misses))

			if !t.sleep(ctx, t.cfg.Poll.TransportInterval) {
				return
			}

			continue
		}

		misses = 0

		status := snap.StatusOrEmpty()

		if !t.reg.Update(id, snap) {
			// The record was removed from view. Keep following silently so a
			// re-added record would not miss completion; once terminal there
			// is nothing left to observe.
			if status.Terminal() {
				log.Debug("untracked download reached terminal status", slog.String("status", string(status)))

				return
			}

			if !t.sleep(ctx, t.cfg.Poll.ProcessingInterval) {
				return
			}

			continue
		}

		t.persist(id)

		switch status {
		case entity.StatusCompleted:
			t.completed(ctx, log, id, snap)

			return
		case entity.StatusError:
			t.failed(log, id)

			return
		}

		interval := t.cfg.Poll.Interval
		if status == entity.StatusProcessing {
			interval = t.cfg.Poll.ProcessingInterval
		}

		if !t.sleep(ctx, interval) {
			return
		}
	}
}

// abandon marks the record lost after exhausting the not-found attempts.
func (t *Tracker) abandon(log *slog.Logger, id string) {
	log.Warn("download tracking lost", slog.Int("attempts", t.cfg.Poll.MaxMisses))

	if t.metrics != nil {
		t.metrics.TrackingLost.Inc()
	}

	if t.reg.Update(id, entity.ErrorSnapshot(consts.MsgTrackingLost)) {
		t.persist(id)
	}
}

func (t *Tracker) completed(ctx context.Context, log *slog.Logger, id string, snap entity.ProgressSnapshot) {
	log.Info("download completed", slog.String("title", snap.TitleOrEmpty()))

	if t.metrics != nil {
		t.metrics.DownloadsCompleted.Inc()
	}

	title := snap.TitleOrEmpty()
	if title == "" {
		if rec, ok := t.reg.Get(id); ok {
			title = rec.Title
		}
	}
	if title == "" {
		title = consts.TitleFallback
	}

	t.notify.Success(fmt.Sprintf("Download completed: %s", title))

	if t.library != nil {
		t.library.RefreshIfActive(ctx)
	}
}

func (t *Tracker) failed(log *slog.Logger, id string) {
	rec, _ := t.reg.Get(id)

	log.Warn("download failed",
		slog.String("error", rec.Error),
		slog.Bool("can_retry", rec.CanRetry))

	if t.metrics != nil {
		t.metrics.DownloadsFailed.Inc()
	}

	msg := rec.Error
	if msg == "" {
		msg = "Unknown error"
	}

	if rec.CanRetry {
		t.notify.Error(fmt.Sprintf("Download failed: %s. Click Retry to try again.", msg))

		return
	}

	t.notify.Error(fmt.Sprintf("Download failed: %s.", msg))
}

// sleep waits for the delay, reporting false when the context ends first.
func (t *Tracker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (t *Tracker) persist(id string) {
	if t.store == nil {
		return
	}

	rec, ok := t.reg.Get(id)
	if !ok {
		return
	}

	if err := t.store.Put(rec); err != nil {
		t.log.Warn("persist record", slog.String("id", id), slog.Any("error", err))
	}
}
