package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DLOADIN/Eduwealthier/pkg/authn"
)

// contextKeyUserID はGinコンテキストにユーザーIDを格納するためのキー。
const contextKeyUserID = "user_id"

// Auth はBearerトークンを検証するGinミドルウェアを返す。
// ハンドラ本体より前に実行されるガードとして合成し、検証に失敗した場合は
// ハンドラを一切実行せずにリクエストを中断する。
//
// Authorizationヘッダーが無い・Bearer形式でない場合は401と
// {"error": "Unauthorized"} を返す。トークン検証に失敗した場合も401を返すが、
// メッセージは検証器が返す汎用メッセージのみで、失敗理由は区別しない。
// 検証に成功した場合、subクレームを "user_id" としてコンテキストに設定する。
func Auth(verifier *authn.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
			})
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(contextKeyUserID, claims.Subject)
		c.Set("email", claims.Email)
		c.Next()
	}
}

// GetUserID はGinコンテキストから認証済みユーザーのIDを取得する。
// Authミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
