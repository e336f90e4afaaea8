package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware behaviour.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// An empty list or the single entry "*" allows all origins.
	AllowOrigins []string

	// AllowMethods lists the HTTP methods clients may use in actual requests.
	// Defaults to "GET, POST, PUT, DELETE, OPTIONS" when empty.
	AllowMethods []string

	// AllowHeaders lists the request headers clients may use. If empty, the
	// preflight's Access-Control-Request-Headers value is echoed back.
	AllowHeaders []string

	// AllowCredentials indicates whether credentialed requests are allowed.
	// When true the wildcard origin must not be used, so the middleware
	// echoes the specific origin instead.
	AllowCredentials bool

	// MaxAge indicates how long (in seconds) preflight results can be cached.
	MaxAge int
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing:
// case-insensitive origin matching with original-case echo-back, Vary header
// handling, and preflight detection via Access-Control-Request-Method.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins)) // lowercase -> original
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}

	// Credentials + wildcard is forbidden by the spec; echo specific origins.
	if cfg.AllowCredentials && allowAll {
		allowAll = false
	}

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				if !allowAll {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := matchOrigin(origin, allowAll, allowed)

			// Preflight: OPTIONS with Access-Control-Request-Method header.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Origin")
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin == "" {
					w.WriteHeader(http.StatusNoContent)
					return
				}

				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				w.Header().Set("Access-Control-Allow-Methods", allowMethods)
				if allowHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
					w.Header().Set("Access-Control-Allow-Headers", rh)
				}
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// Actual cross-origin request.
			if !allowAll {
				w.Header().Add("Vary", "Origin")
			}
			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchOrigin returns the Access-Control-Allow-Origin value for origin, or
// empty when the origin is not allowed.
func matchOrigin(origin string, allowAll bool, allowed map[string]string) string {
	if allowAll {
		return "*"
	}
	if _, ok := allowed[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}
