package middlewares

import (
	"rpgserver/models"

	"github.com/gin-gonic/gin"
)

// ClaimsFromContext は TokenAuthentication がセットしたクレームを返す
func ClaimsFromContext(c *gin.Context) (*models.MyClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*models.MyClaims)
	return claims, ok
}
