// Package logger provides the small leveled wrapper every job and HTTP
// handler in this repo logs through, standardizing the ad hoc "[INFO]"/
// "[WARN]" prefixes scattered across the original handlers into one place.
package logger

import (
	"log"
	"net/http"
	"os"
	"time"
)

type Logger struct {
	l *log.Logger
}

func New(prefix string) *Logger {
	return &Logger{l: log.New(os.Stdout, prefix, log.LstdFlags)}
}

var std = New("")

func Default() *Logger { return std }

func (lg *Logger) Infof(format string, args ...any)  { lg.l.Printf("[INFO] "+format, args...) }
func (lg *Logger) Warnf(format string, args ...any)  { lg.l.Printf("[WARN] "+format, args...) }
func (lg *Logger) Errorf(format string, args ...any) { lg.l.Printf("[ERROR] "+format, args...) }

func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }

// Middleware logs method, path, status and latency for the read-HTTP surface.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		Infof("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
