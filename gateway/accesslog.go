package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AccessLogWriter returns the destination for gateway access logs. An empty
// path logs to stdout; otherwise the file is size-rotated in place.
func AccessLogWriter(path string) io.Writer {
	if strings.TrimSpace(path) == "" {
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog emits one structured line per request.
func AccessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			started := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, req)
			log.Info("gateway request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", recorder.status,
				"client", clientID(req),
				"duration_ms", time.Since(started).Milliseconds(),
			)
		})
	}
}
