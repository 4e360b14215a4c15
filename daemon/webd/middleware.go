package webd

import (
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/dustin/go-humanize"
	ghandlers "github.com/gorilla/handlers"
)

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

func compressionMiddleware(next http.Handler) http.Handler {
	return ghandlers.CompressHandler(next)
}

// writeLog logs a served request with slog.
func writeLog(_ io.Writer, params ghandlers.LogFormatterParams) {
	req := params.Request
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	for _, v := range req.Header.Values("X-Forwarded-For") {
		host += "->" + v
	}
	uri := req.RequestURI
	if uri == "" {
		uri = params.URL.RequestURI()
	}
	level := slog.LevelDebug
	if params.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(req.Context(), level, "HTTP",
		"d", "web",
		"remote", host,
		"method", req.Method,
		"uri", uri,
		"status", params.StatusCode,
		"size", humanize.Bytes(uint64(params.Size)),
	)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, writeLog)
}
