package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures browser access. Origins may be exact ("https://book.example.com"),
// "*" or a subdomain wildcard ("https://*.example.com").
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type originMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: map[string]struct{}{}}
	for _, o := range cleanList(origins) {
		o = strings.ToLower(o)
		switch {
		case o == "*":
			m.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*")
			m.suffixes = append(m.suffixes, scheme+"://|"+host)
		default:
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) empty() bool {
	return !m.any && len(m.exact) == 0 && len(m.suffixes) == 0
}

func (m originMatcher) match(origin string) bool {
	if m.any {
		return true
	}
	o := strings.ToLower(origin)
	if _, ok := m.exact[o]; ok {
		return true
	}
	for _, s := range m.suffixes {
		scheme, host, _ := strings.Cut(s, "|")
		if rest, ok := strings.CutPrefix(o, scheme); ok && strings.HasSuffix(rest, host) && len(rest) > len(host) {
			return true
		}
	}
	return false
}

// WithCORS answers preflights and decorates responses for allowed origins. It is a no-op
// when no origin is configured.
func WithCORS(cfg CORSPolicy) Middleware {
	origins := newOriginMatcher(cfg.AllowedOrigins)
	if origins.empty() {
		return func(next http.Handler) http.Handler { return next }
	}

	static := http.Header{}
	if v := strings.Join(cleanList(cfg.AllowedMethods), ", "); v != "" {
		static.Set("Access-Control-Allow-Methods", v)
	}
	if v := strings.Join(cleanList(cfg.AllowedHeaders), ", "); v != "" {
		static.Set("Access-Control-Allow-Headers", v)
	}
	if v := strings.Join(cleanList(cfg.ExposedHeaders), ", "); v != "" {
		static.Set("Access-Control-Expose-Headers", v)
	}
	if cfg.AllowCredentials {
		static.Set("Access-Control-Allow-Credentials", "true")
	}
	if secs := int(cfg.MaxAge / time.Second); secs > 0 {
		static.Set("Access-Control-Max-Age", strconv.Itoa(secs))
	}
	// A bare "*" cannot be combined with credentials, so the origin is echoed instead.
	echo := !origins.any || cfg.AllowCredentials

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !origins.match(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			for k := range static {
				h.Set(k, static.Get(k))
			}
			if echo {
				h.Set("Access-Control-Allow-Origin", origin)
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
