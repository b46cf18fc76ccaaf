package middlewares

import (
	"net/http"

	"rpgserver/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// TokenAuthentication はJWTを検証し、クレームをコンテキストにセットする
func TokenAuthentication(key []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.ParseToken(auth.BearerToken(c.GetHeader("Authorization")), key)
		if err != nil {
			logger.Warn("認証失敗", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireGM はGMロール以外を拒否する。TokenAuthentication の後に置く
func RequireGM(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok || !claims.IsGM() {
			logger.Warn("GM権限がない", zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "GM role required"})
			return
		}
		c.Next()
	}
}
