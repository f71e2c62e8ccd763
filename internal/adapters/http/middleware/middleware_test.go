package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// serve runs a GET through mw and a handler registered at route.
func serve(t *testing.T, route, target string, headers map[string]string, handler gin.HandlerFunc, mw ...gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.Use(mw...)
	router.GET(route, handler)

	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func ok(c *gin.Context) {
	c.Status(http.StatusOK)
}
