// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lcrs-go/internal/model"
	"lcrs-go/internal/service"
	"lcrs-go/pkg/log"
	"lcrs-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// SimulationHandler 负责处理仿真请求, 包括一次性的 HTTP 调用和 WebSocket 流式调用。
type SimulationHandler struct {
	simulationService service.SimulationService
	memberService     service.MemberService
	jwtManager        *token.JWTManager
}

// NewSimulationHandler 创建一个新的 SimulationHandler 实例。
func NewSimulationHandler(simulationService service.SimulationService, memberService service.MemberService, jwtManager *token.JWTManager) *SimulationHandler {
	return &SimulationHandler{
		simulationService: simulationService,
		memberService:     memberService,
		jwtManager:        jwtManager,
	}
}

// Run 处理一次性的仿真请求, 等全部提供商完成后一次返回。
func (h *SimulationHandler) Run(c *gin.Context) {
	var req model.SimulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[SimulationHandler] Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：prompt 和 manifestVersion 不能为空",
		})
		return
	}

	principal, ok := currentMember(c)
	if !ok {
		return
	}

	resp, err := h.simulationService.Run(c.Request.Context(), principal, &req)
	if err != nil {
		log.Errorf("[SimulationHandler] 仿真执行失败, tenant: %d, error: %v", principal.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": resp, "message": "success"})
}

// Stream 处理一个传入的 WebSocket 连接。
// 浏览器的 WebSocket 无法携带请求头, token 放在路径参数里校验。
// 连接建立后每条文本消息是一次仿真请求, 结果按提供商完成顺序逐帧推送。
func (h *SimulationHandler) Stream(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}

	member, err := h.memberService.GetMember(claims.MemberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取成员信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立, member: %s, tenant: %d", member.Email, member.TenantID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req model.SimulationRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Prompt == "" || req.ManifestVersion == "" {
			frame := model.StreamFrame{Type: model.FrameError, Error: "无效的请求负载：prompt 和 manifestVersion 不能为空"}
			if writeErr := conn.WriteJSON(frame); writeErr != nil {
				log.Warnf("写入错误帧失败: %v", writeErr)
				break
			}
			continue
		}

		// 错误帧由服务内部下发, 这里只记录并继续等待下一条请求
		if err := h.simulationService.Stream(c.Request.Context(), conn, member, &req); err != nil {
			log.Errorf("[SimulationHandler] 流式仿真失败, tenant: %d, error: %v", member.TenantID, err)
		}
	}
}
