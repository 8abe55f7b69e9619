package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsHandler(cfg CORSConfig) http.Handler {
	return CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func corsGet(h http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func corsPreflight(h http.Handler, origin string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCORS_ActualRequests(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"*"}})

		w := corsGet(h, "https://shop.example")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin echoes configured spelling", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"https://Shop.Example"}})

		w := corsGet(h, "https://shop.example")
		assert.Equal(t, "https://Shop.Example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("denied origin gets no allow headers", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"https://shop.example"}})

		w := corsGet(h, "https://evil.example")
		assert.Equal(t, http.StatusOK, w.Code, "request itself still served")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origin header passes through untouched", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"*"}})

		w := corsGet(h, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("expose headers on allowed responses", func(t *testing.T) {
		h := corsHandler(CORSConfig{
			AllowOrigins:  []string{"*"},
			ExposeHeaders: []string{"X-Request-ID"},
		})

		w := corsGet(h, "https://shop.example")
		assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
	})
}

func TestCORS_Credentials(t *testing.T) {
	// Browsers refuse Allow-Credentials together with a wildcard origin, so
	// an allow-all credentialed config must echo the asking origin instead.
	h := corsHandler(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})

	w := corsGet(h, "https://shop.example")
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight(t *testing.T) {
	t.Run("never reaches the handler", func(t *testing.T) {
		called := false
		h := CORS(CORSConfig{AllowOrigins: []string{"*"}})(http.HandlerFunc(
			func(http.ResponseWriter, *http.Request) { called = true }))

		w := corsPreflight(h, "https://shop.example", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.False(t, called)
	})

	t.Run("advertises methods, headers and max age", func(t *testing.T) {
		h := corsHandler(CORSConfig{
			AllowOrigins: []string{"*"},
			AllowHeaders: []string{"Content-Type", "X-User-ID"},
			MaxAge:       86400,
		})

		w := corsPreflight(h, "https://shop.example", nil)
		hdr := w.Header()
		assert.Equal(t, "*", hdr.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", hdr.Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, X-User-ID", hdr.Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "86400", hdr.Get("Access-Control-Max-Age"))
	})

	t.Run("echoes requested headers when none configured", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"*"}})

		w := corsPreflight(h, "https://shop.example", map[string]string{
			"Access-Control-Request-Headers": "X-Custom",
		})
		assert.Equal(t, "X-Custom", w.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("denied origin gets a bare 204", func(t *testing.T) {
		h := corsHandler(CORSConfig{AllowOrigins: []string{"https://shop.example"}})

		w := corsPreflight(h, "https://evil.example", nil)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Access-Control-Request-Method")
	})
}
