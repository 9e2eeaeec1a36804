// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lcrs-go/internal/middleware"
	"lcrs-go/internal/model"
	"lcrs-go/internal/service"
)

// currentMember 从 Gin 上下文中取出认证中间件注入的请求主体。
// 取不到说明路由没有挂认证中间件，按服务器内部错误处理。
func currentMember(c *gin.Context) (*model.Member, bool) {
	principal, exists := c.Get(middleware.PrincipalKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取成员信息"})
		return nil, false
	}
	member, ok := principal.(*model.Member)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "成员数据类型错误"})
		return nil, false
	}
	return member, true
}

// respondError 把业务错误族映射到对应的 HTTP 状态码。
// 未识别的错误一律按 500 返回, 不把内部细节透给调用方。
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrManifestNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": err.Error(),
		})
		return
	}

	var oversized *model.OversizedDocumentError
	if errors.As(err, &oversized) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"code":    http.StatusRequestEntityTooLarge,
			"message": err.Error(),
		})
		return
	}

	var parseErr *model.ClaimExtractionParseError
	if errors.As(err, &parseErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":    http.StatusUnprocessableEntity,
			"message": err.Error(),
		})
		return
	}

	var quotaErr *model.QuotaExceededError
	if errors.As(err, &quotaErr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    http.StatusTooManyRequests,
			"message": err.Error(),
		})
		return
	}

	var accessErr *model.UnauthorizedTenantAccessError
	if errors.As(err, &accessErr) {
		c.JSON(http.StatusForbidden, gin.H{
			"code":    http.StatusForbidden,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    http.StatusInternalServerError,
		"message": "服务器内部错误",
	})
}
