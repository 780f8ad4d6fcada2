// Package auth gates HTTP routes on shared credentials carried in request
// headers.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	APIKeyHeader = "X-API-Key"
	AdminHeader  = "X-Admin-Secret"
)

// Checker decides whether a presented credential is accepted.
type Checker interface {
	Allow(credential string) bool
}

// SharedSecret accepts exactly one secret, compared in constant time. The
// empty secret accepts nothing.
type SharedSecret string

func (s SharedSecret) Allow(credential string) bool {
	if s == "" || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(s)) == 1
}

// Require rejects requests whose header value chk does not allow: 401 when
// the header is missing, 403 when it is wrong.
func Require(header string, chk Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(header)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing " + header,
			})
			return
		}

		if !chk.Allow(provided) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid " + header,
			})
			return
		}

		c.Next()
	}
}

// APIKeyMiddleware validates the API key from the X-API-Key header.
// If apiKey is empty, authentication is disabled.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return Require(APIKeyHeader, SharedSecret(apiKey))
}

// AdminMiddleware gates mutating admin routes. Unlike the API key, an
// unset admin secret locks the routes instead of opening them.
func AdminMiddleware(chk Checker) gin.HandlerFunc {
	return Require(AdminHeader, chk)
}
