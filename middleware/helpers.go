package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
)

// SubjectFromContext returns the subject claim of the authenticated token.
// Handlers use it to attribute mutations, like the editor of a corrected
// score.
func SubjectFromContext(ctx context.Context) (string, bool) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return "", false
	}
	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", false
	}
	return subject, true
}
