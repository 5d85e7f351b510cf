package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ckupload/internal/model"
	"github.com/xxxsen/ckupload/internal/pkg/errcode"
	"github.com/xxxsen/ckupload/internal/pkg/jwt"
	"github.com/xxxsen/ckupload/internal/pkg/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextPrincipalKey = "principal"

	TokenQueryKey  = "token"
	TokenCookieKey = "ckupload_token"
)

// JWTAuth accepts a bearer header, a ?token= query value or the session
// cookie. Editor iframes post plain forms and cannot set headers.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := tokenFromRequest(c)
		if !ok {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(raw, secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.Username)
		c.Set(ContextPrincipalKey, &model.Principal{
			Username:    claims.Username,
			IsSuperuser: claims.IsSuperuser,
		})
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return parts[1], parts[1] != ""
	}
	if token := c.Query(TokenQueryKey); token != "" {
		return token, true
	}
	if token, err := c.Cookie(TokenCookieKey); err == nil && token != "" {
		return token, true
	}
	return "", false
}

// GetPrincipal returns the caller or nil for anonymous requests.
func GetPrincipal(c *gin.Context) *model.Principal {
	value, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*model.Principal)
	return principal
}
