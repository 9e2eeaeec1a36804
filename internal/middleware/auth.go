// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lcrs-go/internal/service"
	"lcrs-go/pkg/token"
)

// PrincipalKey 是认证中间件写入 Gin 上下文的键。
const PrincipalKey = "principal"

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 Member 对象存入 Gin 的上下文中。
// 租户身份只来自这里解析出的请求主体，请求体里的租户字段一律不作数。
func AuthMiddleware(jwtManager *token.JWTManager, memberService service.MemberService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从 Authorization 请求头中获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请求未包含授权头"})
			return
		}

		// Token 以 "Bearer <token>" 的形式提供，提取出 token 本身
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效的授权头格式"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "无效或已过期的 token"})
			return
		}

		// 使用 claims 中的成员ID从数据库获取完整的成员信息
		member, err := memberService.GetMember(claims.MemberID)
		if err != nil {
			// 如果根据 token 中的成员信息无法找到成员，说明该成员可能已被删除
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "成员不存在"})
			return
		}

		// 将完整的 Member 对象存储在 context 中，供后续处理函数使用
		c.Set(PrincipalKey, member)
		c.Set("claims", claims)

		c.Next()
	}
}
