package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"admitflow/backend/internal/dto"
	"admitflow/backend/internal/model"
	"admitflow/backend/internal/repository"
)

// 单次导出的最大跨度
const maxLedgerDays = 366

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportLedger 导出 [from, to] 日期范围内的缴费流水与新增学籍，供财务对账
	ExportLedger(ctx context.Context, req *dto.LedgerExportRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportLedger — 导出对账表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "缴费流水"：每笔缴费一行，末尾按币种汇总已到账金额
//   - Sheet "学籍"：期间内新建的学籍记录

func (s *exportService) ExportLedger(ctx context.Context, req *dto.LedgerExportRequest) (*bytes.Buffer, string, error) {
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		return nil, "", ErrExportInvalidRange
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		return nil, "", ErrExportInvalidRange
	}
	if to.Before(from) || to.Sub(from) > maxLedgerDays*24*time.Hour {
		return nil, "", ErrExportInvalidRange
	}
	// 结束日期当天整天计入
	end := to.AddDate(0, 0, 1)

	payments, err := s.repo.Payment.ListBetween(ctx, from, end)
	if err != nil {
		s.logger.Error("查询缴费流水失败", zap.Error(err))
		return nil, "", err
	}
	students, err := s.repo.Student.ListBetween(ctx, from, end)
	if err != nil {
		s.logger.Error("查询学籍失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// ── 缴费流水 ──
	paySheet := "缴费流水"
	idx, _ := f.NewSheet(paySheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	payHeaders := []string{"交易流水号", "申请ID", "通知ID", "缴费方式", "缴费计划", "金额", "币种", "状态", "渠道", "渠道流水号", "国家", "创建时间", "核实时间"}
	writeHeader(f, paySheet, payHeaders, headerStyle)
	f.SetColWidth(paySheet, "A", "C", 38)
	f.SetColWidth(paySheet, "D", "M", 16)

	totals := make(map[string]decimal.Decimal)
	row := 2
	for i := range payments {
		p := &payments[i]
		verified := ""
		if p.VerifiedAt != nil {
			verified = formatTime(*p.VerifiedAt)
		}
		providerTx := ""
		if p.ProviderTransactionID != nil {
			providerTx = *p.ProviderTransactionID
		}
		amount, _ := p.Amount.Float64()
		values := []interface{}{
			p.TransactionReference, p.ApplicationID, p.OfferID,
			string(p.PaymentMethod), string(p.PaymentPlan), amount, p.Currency,
			string(p.Status), p.Provider, providerTx, p.Country,
			formatTime(p.CreatedAt), verified,
		}
		writeRow(f, paySheet, row, values)
		if p.Status == model.PaymentCompleted {
			totals[p.Currency] = totals[p.Currency].Add(p.Amount)
		}
		row++
	}

	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	row++
	for _, c := range currencies {
		amount, _ := totals[c].Float64()
		f.SetCellValue(paySheet, cell("E", row), "已到账合计")
		f.SetCellValue(paySheet, cell("F", row), amount)
		f.SetCellValue(paySheet, cell("G", row), c)
		row++
	}

	// ── 学籍 ──
	stuSheet := "学籍"
	f.NewSheet(stuSheet)
	stuHeaders := []string{"学号", "申请ID", "用户ID", "专业ID", "校园邮箱", "个人邮箱", "在籍状态", "入学日期", "预计毕业日期", "创建时间"}
	writeHeader(f, stuSheet, stuHeaders, headerStyle)
	f.SetColWidth(stuSheet, "A", "A", 14)
	f.SetColWidth(stuSheet, "B", "F", 38)
	f.SetColWidth(stuSheet, "G", "J", 16)

	for i := range students {
		st := &students[i]
		writeRow(f, stuSheet, i+2, []interface{}{
			st.StudentID, st.ApplicationID, st.UserID, st.ProgrammeID,
			st.InstitutionalEmail, st.PersonalEmail, string(st.EnrollmentStatus),
			st.StartDate.Format(dateLayout), st.ExpectedGraduationDate.Format(dateLayout),
			formatTime(st.CreatedAt),
		})
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("对账表已导出",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Int("payments", len(payments)),
		zap.Int("students", len(students)),
	)
	filename := fmt.Sprintf("对账表_%s_%s.xlsx", req.From, req.To)
	return buf, filename, nil
}

// ── 辅助函数 ──

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), style)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		f.SetCellValue(sheet, cell(colName(i), row), v)
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
