package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(apiKey))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	cases := []struct {
		name       string
		serverKey  string
		requestKey string
		wantStatus int
	}{
		{"valid key", "secret", "secret", http.StatusOK},
		{"missing key", "secret", "", http.StatusUnauthorized},
		{"wrong key", "secret", "other", http.StatusForbidden},
		{"auth disabled", "", "", http.StatusOK},
		{"auth disabled ignores header", "", "anything", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(tc.serverKey)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.requestKey != "" {
				req.Header.Set("X-API-Key", tc.requestKey)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}
