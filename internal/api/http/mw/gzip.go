package mw

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"
)

// GzipMiddleware compresses responses for clients that accept it. Token
// listings are large and repetitive JSON, they compress well.
type GzipMiddleware struct {
	Level  int
	Logger logger.Logger

	pool sync.Pool
}

func NewGzip(level int, log logger.Logger) *GzipMiddleware {
	if level == 0 {
		level = gzip.BestSpeed
	}

	m := &GzipMiddleware{Level: level, Logger: log}
	m.pool.New = func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, m.Level)
		return w
	}
	return m
}

func (m *GzipMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !compressible(w, r) {
			next.ServeHTTP(w, r)
			return
		}

		gzw := m.pool.Get().(*gzip.Writer)
		gzw.Reset(w)
		defer func() {
			if err := gzw.Close(); err != nil {
				m.Logger.Errorf("failed to close gzip writer: %v", err)
			}
			m.pool.Put(gzw)
		}()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")

		next.ServeHTTP(&compressedWriter{ResponseWriter: w, gz: gzw}, r)
	})
}

func compressible(w http.ResponseWriter, r *http.Request) bool {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		return false
	}
	// upstream already encoded it, or the client wants a live stream
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}
	if strings.HasPrefix(r.Header.Get("Accept"), "text/event-stream") {
		return false
	}
	return true
}

type compressedWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *compressedWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

func (w *compressedWriter) Flush() {
	_ = w.gz.Flush()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
