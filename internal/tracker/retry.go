package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"vidtrack/internal/consts"
	"vidtrack/internal/entity"
	"vidtrack/internal/errs"
)

// Retry asks the backend to re-run a failed download and re-arms its poller.
// It requires a registry record for the identifier; without one there is
// nothing to retry and no backend call is made. On rejection the record is
// left in its prior terminal state.
func (t *Tracker) Retry(ctx context.Context, id string) error {
	log := t.log.With(slog.String("func", "Retry"), slog.String("id", id))

	if _, ok := t.reg.Get(id); !ok {
		t.notify.Error(consts.MsgRecordNotFound)

		return fmt.Errorf("%w: %s", errs.ErrRecordNotFound, id)
	}

	t.notify.Info(consts.MsgRetrying)

	retryCount, err := t.backend.Retry(ctx, id)
	if err != nil {
		log.Warn("retry rejected", slog.Any("error", err))
		t.notify.Error(err.Error())

		return err
	}

	if t.metrics != nil {
		t.metrics.RetriesIssued.Inc()
	}

	t.reg.Update(id, entity.RetrySnapshot(retryCount))
	t.persist(id)

	log.Info("retry accepted", slog.Int("retry_count", retryCount))

	if err := t.Track(ctx, id); err != nil {
		// A poller can still be draining from the terminal observation; the
		// record state is already reset, so tracking resumes with it.
		log.Debug("poller already armed after retry", slog.Any("error", err))
	}

	return nil
}
