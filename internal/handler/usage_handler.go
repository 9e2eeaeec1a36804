package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lcrs-go/internal/service"
	"lcrs-go/pkg/log"
)

// UsageHandler 负责处理用量查询相关的 API 请求。
type UsageHandler struct {
	usageService service.UsageService
}

// NewUsageHandler 创建一个新的 UsageHandler 实例。
func NewUsageHandler(usageService service.UsageService) *UsageHandler {
	return &UsageHandler{usageService: usageService}
}

// Report 返回当前租户本账期的用量汇总。
func (h *UsageHandler) Report(c *gin.Context) {
	principal, ok := currentMember(c)
	if !ok {
		return
	}

	report, err := h.usageService.Report(c.Request.Context(), principal.TenantID)
	if err != nil {
		log.Errorf("[UsageHandler] 查询用量失败, tenant: %d, error: %v", principal.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}
