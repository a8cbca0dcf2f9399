package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const headerXRequestID = "X-Request-ID"

// transport stamps every outgoing request with a correlation identifier and
// logs the round trip. The backend echoes the header, so a request can be
// matched across both logs.
type transport struct {
	log  *slog.Logger
	next http.RoundTripper
}

func newTransport(log *slog.Logger) *transport {
	return &transport{log: log, next: http.DefaultTransport}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqID := req.Header.Get(headerXRequestID)
	if reqID == "" {
		reqID = uuid.NewString()
		req.Header.Set(headerXRequestID, reqID)
	}

	log := t.log.With(
		slog.String("request_id", reqID),
		slog.String("method", req.Method),
		slog.String("uri", req.URL.RequestURI()),
	)

	start := time.Now()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		log.Debug("backend request failed", slog.Any("error", err))

		return nil, err
	}

	log.Debug("backend request",
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	return resp, nil
}
