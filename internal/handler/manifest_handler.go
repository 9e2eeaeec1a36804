// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lcrs-go/internal/config"
	"lcrs-go/internal/model"
	"lcrs-go/internal/service"
	"lcrs-go/pkg/log"
)

// ManifestHandler 负责处理文档版本相关的 API 请求。
type ManifestHandler struct {
	ingestService   service.IngestService
	manifestService service.ManifestService
	ingestCfg       config.IngestConfig
}

// NewManifestHandler 创建一个新的 ManifestHandler 实例。
func NewManifestHandler(ingestService service.IngestService, manifestService service.ManifestService, ingestCfg config.IngestConfig) *ManifestHandler {
	return &ManifestHandler{
		ingestService:   ingestService,
		manifestService: manifestService,
		ingestCfg:       ingestCfg,
	}
}

// Upload 处理文档上传请求。上传被接受后立即返回版本号,
// 解析与向量化异步完成, 调用方通过查询接口轮询处理状态。
func (h *ManifestHandler) Upload(c *gin.Context) {
	principal, ok := currentMember(c)
	if !ok {
		return
	}

	// 用 Content-Length 先行拦截超限请求, 避免解析超大的 multipart 表单
	if h.ingestCfg.MaxUploadBytes > 0 && c.Request.ContentLength > h.ingestCfg.MaxUploadBytes {
		respondError(c, &model.OversizedDocumentError{Size: c.Request.ContentLength, Limit: h.ingestCfg.MaxUploadBytes})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未能获取上传的文件"})
		return
	}
	defer file.Close()

	title := c.PostForm("title")
	contentType := header.Header.Get("Content-Type")

	log.Infof("[ManifestHandler] 收到文档上传请求, tenant: %d, file: %s, size: %d", principal.TenantID, header.Filename, header.Size)
	manifest, err := h.ingestService.Upload(c.Request.Context(), principal.TenantID, title, header.Filename, contentType, header.Size, file)
	if err != nil {
		log.Errorf("[ManifestHandler] 文档上传失败, file: %s, error: %v", header.Filename, err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "文档已接收, 正在处理",
		"data": gin.H{
			"versionId": manifest.VersionID,
			"title":     manifest.Title,
			"status":    manifest.Status,
		},
	})
}

// GetDetail 查询单个版本的处理状态与声明摘要。
func (h *ManifestHandler) GetDetail(c *gin.Context) {
	versionID := c.Param("versionId")
	if versionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 versionId 参数"})
		return
	}

	principal, ok := currentMember(c)
	if !ok {
		return
	}

	detail, err := h.manifestService.GetDetail(c.Request.Context(), principal, versionID)
	if err != nil {
		log.Warnf("[ManifestHandler] 查询版本详情失败, version: %s, error: %v", versionID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": detail, "message": "success"})
}

// List 返回当前租户的全部文档版本。
func (h *ManifestHandler) List(c *gin.Context) {
	principal, ok := currentMember(c)
	if !ok {
		return
	}

	summaries, err := h.manifestService.List(c.Request.Context(), principal.TenantID)
	if err != nil {
		log.Errorf("[ManifestHandler] 查询版本列表失败, tenant: %d, error: %v", principal.TenantID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": summaries, "message": "success"})
}

// Delete 删除一个文档版本, 仅限管理员。
func (h *ManifestHandler) Delete(c *gin.Context) {
	versionID := c.Param("versionId")
	if versionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 versionId 参数"})
		return
	}

	principal, ok := currentMember(c)
	if !ok {
		return
	}

	if err := h.manifestService.Delete(c.Request.Context(), principal, versionID); err != nil {
		log.Errorf("[ManifestHandler] 删除版本失败, version: %s, error: %v", versionID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "版本删除成功"})
}
