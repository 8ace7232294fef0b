package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/systems-marketplace-payments/internal/domain/shared"
)

// CallerIDKey is the gin context key holding the authenticated subject
const CallerIDKey = "caller_id"

var errMissingSubject = errors.New("token has no subject")

// Auth verifies an HS256 bearer token and stores its subject as the caller id.
// When issuer is not empty the iss claim must match it.
func Auth(secret []byte, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthenticated(c, "User must be authenticated")
			return
		}

		subject, err := verify(parser, raw, secret)
		if err != nil {
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}

		c.Set(CallerIDKey, subject)
		c.Next()
	}
}

func verify(parser *jwt.Parser, raw string, secret []byte) (string, error) {
	token, err := parser.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if subject == "" {
		return "", errMissingSubject
	}
	return subject, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func abortUnauthenticated(c *gin.Context, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    string(shared.KindUnauthenticated),
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}

// GetCallerID returns the authenticated caller, or "" outside Auth
func GetCallerID(c *gin.Context) string {
	return c.GetString(CallerIDKey)
}
