package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/diarizer/errors"
)

// AuthConfig configures the static bearer token check.
type AuthConfig struct {
	// Token is the expected bearer token. Empty disables the check.
	Token string
	// SkipPaths are URL path prefixes that bypass authentication.
	SkipPaths []string
}

// Auth returns a Gin middleware that requires "Authorization: Bearer <Token>".
// A missing or wrong token aborts with 401 and the standard error body.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	expected := []byte(cfg.Token)
	return func(c *gin.Context) {
		if cfg.Token == "" {
			c.Next()
			return
		}
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if strings.HasPrefix(path, skip) {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, apperrors.Unauthorized(""))
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			AbortWithError(c, apperrors.Unauthorized("Invalid authorization header format."))
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), expected) != 1 {
			AbortWithError(c, apperrors.Unauthorized("Invalid token."))
			return
		}
		c.Next()
	}
}
