package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS はフロントエンドのオリジンからのクロスオリジンリクエストを許可する
// Ginミドルウェアを返す。許可するオリジンは設定で与えられた1つのみ。
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && origin == allowedOrigin {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
