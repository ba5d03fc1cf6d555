// Package log provides a logging middleware that records one line per
// request, at a level chosen by the response status.
package log

import (
	"bufio"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/qabel/blockserver/pkg/appctx"
)

// New returns a new HTTP middleware that logs HTTP requests and responses.
func New() func(http.Handler) http.Handler {
	return handler
}

func handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		log := appctx.GetLogger(req.Context())
		t := time.Now()
		logger := makeLogger(w)
		u := *req.URL
		next.ServeHTTP(logger, req)
		writeLog(log, req, u, t, logger.Status(), logger.Size())
	})
}

// loggingResponseWriter is the common surface writeLog needs, implemented by
// both variants makeLogger can return.
type loggingResponseWriter interface {
	http.ResponseWriter
	Status() int
	Size() int
}

func makeLogger(w http.ResponseWriter) loggingResponseWriter {
	base := responseLogger{w: w, status: http.StatusOK}
	if _, ok := w.(http.Hijacker); ok {
		return &hijackLogger{base}
	}
	return &base
}

func writeLog(log *zerolog.Logger, req *http.Request, u url.URL, ts time.Time, status, size int) {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}

	uri := req.RequestURI
	if uri == "" {
		uri = u.RequestURI()
	}

	var event *zerolog.Event
	switch {
	case status < 400:
		event = log.Info()
	case status < 500:
		event = log.Warn()
	default:
		event = log.Error()
	}
	event.Str("host", host).Str("method", req.Method).Str("uri", uri).
		Int("status", status).Int("size", size).
		Dur("elapsed", time.Since(ts)).
		Msg("processed http request")
}

// responseLogger wraps http.ResponseWriter to record the status code and
// body size written, and passes through Hijack/Flush where supported.
type responseLogger struct {
	w      http.ResponseWriter
	status int
	size   int
}

func (l *responseLogger) Header() http.Header { return l.w.Header() }

func (l *responseLogger) Write(b []byte) (int, error) {
	size, err := l.w.Write(b)
	l.size += size
	return size, err
}

func (l *responseLogger) WriteHeader(s int) {
	l.w.WriteHeader(s)
	l.status = s
}

func (l *responseLogger) Status() int { return l.status }
func (l *responseLogger) Size() int   { return l.size }

func (l *responseLogger) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

// hijackLogger is a responseLogger whose underlying ResponseWriter supports
// hijacking (required for the websocket upgrade handlers).
type hijackLogger struct {
	responseLogger
}

func (l *hijackLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, rw, err := l.w.(http.Hijacker).Hijack()
	if err == nil && l.status == 0 {
		l.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}
