package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
)

// KeyFunc derives the breaker key for a request.
type KeyFunc func(r *http.Request) string

// KeyByHost keys requests by the target host, the usual choice when
// the breaker protects an upstream behind a reverse proxy.
func KeyByHost(r *http.Request) string {
	return r.Host
}

// KeyByPath keys requests by the request path.
func KeyByPath(r *http.Request) string {
	return r.URL.Path
}

// GuardMiddleware wraps an http.Handler with a breaker check: requests
// for an open key are rejected with 503 before reaching the handler,
// and 5xx responses from the handler count as failures.
func GuardMiddleware(next http.Handler, br *breaker.Breaker, keyFn KeyFunc) http.Handler {
	if keyFn == nil {
		keyFn = KeyByHost
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFn(r)

		decision, err := br.Allow(r.Context(), key)
		if err != nil {
			log.Printf("breaker check error for %q: %v", key, err)
			next.ServeHTTP(w, r)
			return
		}
		if !decision.Allowed {
			w.Header().Set("X-Breaker-State", decision.StateName)
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())+1))
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		if err := br.Report(r.Context(), key, sw.status >= http.StatusInternalServerError); err != nil {
			log.Printf("breaker report error for %q: %v", key, err)
		}
	})
}

// statusWriter captures the response status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
