package apiserver

import (
	"net/http"
)

// CORSConfig controls which origins get permissive CORS headers.
type CORSConfig struct {
	AllowedOrigins []string
}

func (c CORSConfig) allows(origin string) bool {
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// corsMiddleware applies the origin-conditional CORS contract: an OPTIONS
// preflight from an allowed origin gets a 204 with Allow headers and short-
// circuits before reaching the handler; a request from a disallowed origin
// fails with KindDoesNotSupportCORS here, before the pipeline runs, rather
// than silently omitting CORS headers.
func corsMiddleware(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		if !cfg.allows(origin) {
			writeError(w, Fail(KindDoesNotSupportCORS, "origin not permitted"))
			return
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Hydrus-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetupRoutes registers every endpoint in Resources against mux, wrapping
// each with the pipeline's five stages and the CORS middleware. pipeline
// supplies the actual stage implementations (restrictions, parse args,
// session/account, dispatch, render) and owns the DB and kernel handles they close over.
func SetupRoutes(mux *http.ServeMux, p *Pipeline, cors CORSConfig) {
	seen := make(map[string]bool)
	for _, res := range Resources {
		if seen[res.Path] {
			continue
		}
		seen[res.Path] = true
		resource := res
		mux.Handle(resource.Path, corsMiddleware(cors, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.ServeResource(w, r, resource)
		})))
	}
}
