package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// AllowOrigins lists origins permitted to make cross-origin requests.
	// Empty, or an entry "*", permits any origin.
	AllowOrigins []string

	// AllowMethods lists methods permitted in actual requests. Empty means
	// GET, POST, PUT, DELETE and OPTIONS.
	AllowMethods []string

	// AllowHeaders lists request headers clients may send. Empty means the
	// preflight's Access-Control-Request-Headers is echoed back.
	AllowHeaders []string

	// ExposeHeaders lists response headers browser scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and Authorization headers on
	// cross-origin requests. Browsers reject credentialed responses with a
	// wildcard origin, so enabling this switches to specific-origin echo.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header; negative sends "0".
	MaxAge int
}

// cors is the compiled form of a CORSConfig: joined header values and the
// wildcard decision are computed once, not per request.
type cors struct {
	origins     []string
	wildcard    bool
	credentials bool
	methods     string
	headers     string
	expose      string
	maxAge      string
}

func compileCORS(cfg CORSConfig) *cors {
	c := &cors{
		origins:     cfg.AllowOrigins,
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
	}
	if c.methods == "" {
		c.methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	switch {
	case cfg.MaxAge > 0:
		c.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		c.maxAge = "0"
	}

	c.wildcard = len(cfg.AllowOrigins) == 0
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.wildcard = true
			break
		}
	}
	// Credentialed responses must name the origin, so an allow-all config
	// degrades to echoing whatever origin asked.
	if c.credentials {
		c.wildcard = false
	}
	return c
}

// originFor resolves the Access-Control-Allow-Origin value for a request
// origin, or "" when the origin is not allowed. Matching is
// case-insensitive; the configured spelling wins on echo.
func (c *cors) originFor(origin string) string {
	if c.wildcard {
		return "*"
	}
	if len(c.origins) == 0 {
		return origin
	}
	for _, o := range c.origins {
		if o == "*" {
			return origin
		}
		if strings.EqualFold(o, origin) {
			return o
		}
	}
	return ""
}

// CORS returns a cross-origin resource sharing middleware. Preflights are
// answered with 204 and never reach the wrapped handler; actual cross-origin
// requests get the allow headers attached on the way through. Vary headers
// are set whenever the response depends on the origin, so a shared cache
// never serves one origin's response to another.
func CORS(cfg CORSConfig) Middleware {
	c := compileCORS(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin or non-browser traffic: nothing to negotiate.
			if origin == "" {
				if !c.wildcard {
					w.Header().Add("Vary", "Origin")
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.preflight(w, r, origin)
				return
			}

			c.actual(w, origin)
			next.ServeHTTP(w, r)
		})
	}
}

func (c *cors) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allow := c.originFor(origin)
	if allow == "" {
		// Denied origins get a bare 204: no allow headers means the
		// browser blocks the actual request.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allow)
	h.Set("Access-Control-Allow-Methods", c.methods)
	if c.headers != "" {
		h.Set("Access-Control-Allow-Headers", c.headers)
	} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
		h.Set("Access-Control-Allow-Headers", req)
	}
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.maxAge != "" {
		h.Set("Access-Control-Max-Age", c.maxAge)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *cors) actual(w http.ResponseWriter, origin string) {
	h := w.Header()
	if !c.wildcard {
		h.Add("Vary", "Origin")
	}

	allow := c.originFor(origin)
	if allow == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", allow)
	if c.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.expose != "" {
		h.Set("Access-Control-Expose-Headers", c.expose)
	}
}
