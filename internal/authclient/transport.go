package authclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestIDHeader carries the attempt ID to the server.
const RequestIDHeader = "X-Request-ID"

// loggingTransport logs request metadata. Bodies and headers are never logged.
type loggingTransport struct {
	next http.RoundTripper
	log  *zap.Logger
}

func newLoggingTransport(next http.RoundTripper, log *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, log: log}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	if id, ok := AttemptIDFromCtx(req.Context()); ok {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, id.String())
		fields = append(fields, zap.String("attempt", id.String()))
	}

	resp, err := t.next.RoundTrip(req)
	fields = append(fields, zap.Duration("dur", time.Since(start)))
	if err != nil {
		t.log.Warn("http", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.log.Debug("http", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}
