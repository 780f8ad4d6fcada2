package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSharedSecret(t *testing.T) {
	assert.True(t, SharedSecret("s3cret").Allow("s3cret"))
	assert.False(t, SharedSecret("s3cret").Allow("s3cre"))
	assert.False(t, SharedSecret("s3cret").Allow(""))
	assert.False(t, SharedSecret("").Allow(""))
	assert.False(t, SharedSecret("").Allow("anything"))
}

func serve(mw gin.HandlerFunc, header, value string) int {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", mw, func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if value != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		mw     gin.HandlerFunc
		header string
		value  string
		want   int
	}{
		{"api key disabled", APIKeyMiddleware(""), APIKeyHeader, "", http.StatusNoContent},
		{"api key missing", APIKeyMiddleware("k"), APIKeyHeader, "", http.StatusUnauthorized},
		{"api key wrong", APIKeyMiddleware("k"), APIKeyHeader, "x", http.StatusForbidden},
		{"api key ok", APIKeyMiddleware("k"), APIKeyHeader, "k", http.StatusNoContent},
		{"admin unset locks", AdminMiddleware(SharedSecret("")), AdminHeader, "x", http.StatusForbidden},
		{"admin missing", AdminMiddleware(SharedSecret("a")), AdminHeader, "", http.StatusUnauthorized},
		{"admin ok", AdminMiddleware(SharedSecret("a")), AdminHeader, "a", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(tt.mw, tt.header, tt.value))
		})
	}
}
