package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vibecampus/vibehub/internal/apperr"
)

const (
	callerKey = "vibehub.caller"
	tokenKey  = "vibehub.token"
)

// authenticate resolves a bearer token to the calling user. Requests
// without a token continue anonymously; a bad token is rejected.
func (r *Router) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" || r.auth == nil {
		c.Next()
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" || token == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
		return
	}
	claims, err := r.auth.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apperr.Message(err)})
		return
	}
	c.Set(callerKey, claims.UserID)
	c.Set(tokenKey, token)
	c.Next()
}

// Caller returns the authenticated user id or ""
func Caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

func requireCaller(c *gin.Context) (string, error) {
	caller := Caller(c)
	if caller == "" {
		return "", apperr.Unauthorized("Sign in to continue")
	}
	return caller, nil
}
