package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/uacr-monitor/internal/domain"
)

// SubjectKey is the gin context key holding the authenticated token subject.
const SubjectKey = "subject"

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// BearerAuth validates an HMAC-signed JWT in the Authorization header and
// stores its "sub" claim under SubjectKey. An empty secret disables the check.
func BearerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			abortUnauthorized(c, "Authentication required")
			return
		}
		raw = strings.TrimPrefix(raw, "Bearer ")

		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errUnexpectedSigningMethod
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token format")
			return
		}
		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			abortUnauthorized(c, "Token has no subject")
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	apiErr := domain.NewAPIError(domain.ErrCodeUnauthorized, message, "", c.GetString(CorrelationIDKey))
	c.AbortWithStatusJSON(http.StatusUnauthorized, apiErr)
}
