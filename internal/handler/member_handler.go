// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lcrs-go/internal/service"
	"lcrs-go/pkg/log"
)

// MemberHandler 负责处理成员认证与管理相关的 API 请求。
type MemberHandler struct {
	memberService service.MemberService
}

// NewMemberHandler 创建一个新的 MemberHandler 实例。
func NewMemberHandler(memberService service.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// LoginRequest 定义了成员登录 API 的请求体结构。
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理成员登录请求。
func (h *MemberHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：邮箱和密码不能为空",
		})
		return
	}

	accessToken, member, err := h.memberService.Login(req.Email, req.Password)
	if err != nil {
		log.Warnf("Login: Member authentication failed for '%s', error: %v", req.Email, err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    http.StatusUnauthorized,
			"message": "无效的凭证",
		})
		return
	}

	log.Infof("Member '%s' logged in successfully", req.Email)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Login successful",
		"data": gin.H{
			"token":    accessToken,
			"tenantId": member.TenantID,
			"role":     member.Role,
		},
	})
}

// CreateMemberRequest 定义了创建成员 API 的请求体结构。
type CreateMemberRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// CreateMember 处理创建成员的请求。新成员归属于操作者所在的租户。
func (h *MemberHandler) CreateMember(c *gin.Context) {
	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("CreateMember: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：邮箱和密码不能为空",
		})
		return
	}

	principal, ok := currentMember(c)
	if !ok {
		return
	}

	member, err := h.memberService.CreateMember(principal, req.Email, req.Password, req.Role)
	if err != nil {
		log.Warnf("CreateMember: failed for '%s', error: %v", req.Email, err)
		c.JSON(http.StatusConflict, gin.H{
			"code":    http.StatusConflict,
			"message": err.Error(),
		})
		return
	}

	log.Infof("Member '%s' created successfully, tenant: %d", member.Email, member.TenantID)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "成员创建成功",
		"data":    member,
	})
}

// ListMembers 返回当前租户下的全部成员。
func (h *MemberHandler) ListMembers(c *gin.Context) {
	principal, ok := currentMember(c)
	if !ok {
		return
	}

	members, err := h.memberService.ListMembers(principal.TenantID)
	if err != nil {
		log.Errorf("ListMembers: failed for tenant %d, error: %v", principal.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": members, "message": "success"})
}

// GetProfile 获取当前登录成员的信息。
// 成员信息已经由 AuthMiddleware 注入到上下文中。
func (h *MemberHandler) GetProfile(c *gin.Context) {
	principal, ok := currentMember(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": principal, "message": "success"})
}
