package internal

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.elastic.co/apm/module/apmhttp"
)

type ipKey struct{}

// WrapAll wraps a http.Handler with IP resolution, request logging,
// panic recovery and APM tracing
func WrapAll(h http.Handler, log logrus.FieldLogger) http.Handler {
	h = middleware.Recoverer(h)
	h = WrapWithLog(h, log)
	h = WrapWithIP(h)
	h = apmhttp.Wrap(h)
	return h
}

// WrapWithIP stores the client IP in the request context
func WrapWithIP(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := SetIPToContext(r.Context(), clientIP(r))
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WrapWithLog logs every request with its status and duration
func WrapWithLog(h http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		h.ServeHTTP(ww, r)

		log.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    ww.Status(),
			"bytes":     ww.BytesWritten(),
			"duration":  time.Since(start).String(),
			"remote_ip": GetIPFromContext(r.Context()),
		}).Debug("request")
	})
}

func clientIP(r *http.Request) string {
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if addr := r.Header.Get(header); addr != "" {
			return strings.TrimSpace(strings.SplitN(addr, ",", 2)[0])
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// SetIPToContext stores the client IP in ctx
func SetIPToContext(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey{}, ip)
}

// GetIPFromContext returns the client IP from ctx
func GetIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ipKey{}).(string); ok {
		return ip
	}
	return ""
}
