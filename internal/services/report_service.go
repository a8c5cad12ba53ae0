package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/sjperalta/fintera-lending/internal/apperrors"
	"github.com/sjperalta/fintera-lending/internal/models"
	"github.com/sjperalta/fintera-lending/internal/repository"
	"github.com/sjperalta/fintera-lending/internal/storage"
	"github.com/sjperalta/fintera-lending/pkg/logger"
)

const reportsDir = "reports"

// Report is a generated file
type Report struct {
	Data     []byte
	Filename string
	Path     string // relative archive path, empty when archiving failed
}

type ReportService struct {
	loanRepo   repository.LoanRepository
	incomeRepo repository.IncomeRepository
	storage    *storage.LocalStorage
	now        func() time.Time
}

func NewReportService(
	loanRepo repository.LoanRepository,
	incomeRepo repository.IncomeRepository,
	storage *storage.LocalStorage,
) *ReportService {
	return &ReportService{
		loanRepo:   loanRepo,
		incomeRepo: incomeRepo,
		storage:    storage,
		now:        time.Now,
	}
}

func (s *ReportService) loanWithSchedule(ctx context.Context, actor models.Actor, loanID uint) (*models.Loan, error) {
	if _, err := loadLoan(ctx, s.loanRepo, actor, loanID); err != nil {
		return nil, err
	}
	return s.loanRepo.FindByIDWithSchedule(ctx, loanID)
}

// ScheduleXLSX renders the payment schedule of a loan as a spreadsheet
func (s *ReportService) ScheduleXLSX(ctx context.Context, actor models.Actor, loanID uint) (*Report, error) {
	loan, err := s.loanWithSchedule(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Schedule"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Loan #%d payment schedule", loan.ID))
	_ = f.SetCellValue(sheet, "A2", "Customer")
	_ = f.SetCellValue(sheet, "B2", loan.CustomerRef)
	_ = f.SetCellValue(sheet, "A3", "Principal")
	_ = f.SetCellValue(sheet, "B3", loan.Principal.StringFixed(2))
	_ = f.SetCellValue(sheet, "A4", "Annual rate")
	_ = f.SetCellValue(sheet, "B4", loan.AnnualRate.StringFixed(2)+"%")
	_ = f.SetCellValue(sheet, "A5", "Term (months)")
	_ = f.SetCellValue(sheet, "B5", loan.TermMonths)

	headers := []string{"#", "Due date", "Amount", "Principal", "Interest", "Remaining", "Status", "Paid"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 7)
		_ = f.SetCellValue(sheet, cell, h)
	}
	_ = f.SetCellStyle(sheet, "A7", "H7", headerStyle)

	now := s.now()
	for i := range loan.Schedule {
		e := &loan.Schedule[i]
		row := []interface{}{
			e.InstallmentNumber,
			e.DueDate.Format(models.DateLayout),
			e.Amount.InexactFloat64(),
			e.PrincipalPortion.InexactFloat64(),
			e.InterestPortion.InexactFloat64(),
			e.RemainingBalance.InexactFloat64(),
			string(e.EffectiveStatus(now)),
			e.Paid().InexactFloat64(),
		}
		cell, _ := excelize.CoordinatesToCellName(1, 8+i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return s.archive(loan.TenantID, buf.Bytes(), fmt.Sprintf("loan_%d_schedule_%s.xlsx", loan.ID, now.Format(models.DateLayout))), nil
}

// SchedulePDF renders the payment schedule of a loan as a printable table
func (s *ReportService) SchedulePDF(ctx context.Context, actor models.Actor, loanID uint) (*Report, error) {
	loan, err := s.loanWithSchedule(ctx, actor, loanID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, fmt.Sprintf("Loan #%d payment schedule", loan.ID))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(40, 6, "Customer:")
	pdf.Cell(60, 6, loan.CustomerRef)
	pdf.Ln(6)
	pdf.Cell(40, 6, "Principal:")
	pdf.Cell(60, 6, loan.Principal.StringFixed(2))
	pdf.Ln(6)
	pdf.Cell(40, 6, "Annual rate:")
	pdf.Cell(60, 6, loan.AnnualRate.StringFixed(2)+"%")
	pdf.Ln(6)
	pdf.Cell(40, 6, "Term:")
	pdf.Cell(60, 6, fmt.Sprintf("%d months", loan.TermMonths))
	pdf.Ln(10)

	widths := []float64{10, 25, 25, 25, 25, 28, 20, 25}
	headers := []string{"#", "Due date", "Amount", "Principal", "Interest", "Remaining", "Status", "Paid"}
	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for i := range loan.Schedule {
		e := &loan.Schedule[i]
		cols := []string{
			fmt.Sprintf("%d", e.InstallmentNumber),
			e.DueDate.Format(models.DateLayout),
			e.Amount.StringFixed(2),
			e.PrincipalPortion.StringFixed(2),
			e.InterestPortion.StringFixed(2),
			e.RemainingBalance.StringFixed(2),
			string(e.EffectiveStatus(now)),
			e.Paid().StringFixed(2),
		}
		for j, c := range cols {
			align := "R"
			if j == 1 || j == 6 {
				align = "L"
			}
			pdf.CellFormat(widths[j], 6, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := new(bytes.Buffer)
	if err := pdf.Output(buf); err != nil {
		return nil, err
	}
	return s.archive(loan.TenantID, buf.Bytes(), fmt.Sprintf("loan_%d_schedule_%s.pdf", loan.ID, now.Format(models.DateLayout))), nil
}

// IncomeXLSX exports the income ledger of a tenant for a date range. Zero
// dates leave the range open.
func (s *ReportService) IncomeXLSX(ctx context.Context, tenantID uint, from, to time.Time) (*Report, error) {
	query := &repository.IncomeQuery{
		ListQuery: &repository.ListQuery{SortBy: "date", SortDir: "asc"},
		TenantID:  tenantID,
		From:      from,
		To:        to,
	}
	records, _, err := s.incomeRepo.List(ctx, query)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := "Income"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []interface{}{"Date", "Reference", "Category", "Loan", "Schedule entry", "Amount", "Description"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for i := range records {
		r := &records[i]
		row := []interface{}{
			r.Date.Format(models.DateLayout),
			r.Reference,
			r.Category,
			uintOrEmpty(r.LoanID),
			uintOrEmpty(r.ScheduleEntryID),
			r.Amount.InexactFloat64(),
			r.Description,
		}
		total = total.Add(r.Amount)
		cell, _ := excelize.CoordinatesToCellName(1, 2+i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}
	totalRow := len(records) + 3
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", totalRow), "Total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", totalRow), total.InexactFloat64())

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return s.archive(tenantID, buf.Bytes(), fmt.Sprintf("income_%s.xlsx", s.now().Format(models.DateLayout))), nil
}

// archive stores a copy of the report. Failures are logged and the report is
// still returned.
func (s *ReportService) archive(tenantID uint, data []byte, filename string) *Report {
	report := &Report{Data: data, Filename: filename}
	if s.storage == nil {
		return report
	}
	path, err := s.storage.Save(data, filename, archiveDir(tenantID))
	if err != nil {
		logger.Error("Failed to archive report", "filename", filename, "error", err)
		return report
	}
	report.Path = path
	return report
}

func archiveDir(tenantID uint) string {
	return fmt.Sprintf("%s/tenant_%d", reportsDir, tenantID)
}

// ArchivedReport is a stored report opened for reading. Callers close File.
type ArchivedReport struct {
	File *os.File
	Size int64
	Name string
}

// checkArchive resolves p to an existing report of the tenant. Anything
// outside the tenant's archive reads as not found.
func (s *ReportService) checkArchive(tenantID uint, p string) (string, error) {
	clean := path.Clean(p)
	if s.storage == nil || !strings.HasPrefix(clean, archiveDir(tenantID)+"/") || !s.storage.Exists(clean) {
		return "", &apperrors.NotFoundError{Entity: "Report"}
	}
	return clean, nil
}

// OpenArchived opens a previously generated report of the tenant
func (s *ReportService) OpenArchived(tenantID uint, p string) (*ArchivedReport, error) {
	clean, err := s.checkArchive(tenantID, p)
	if err != nil {
		return nil, err
	}
	size, err := s.storage.GetSize(clean)
	if err != nil {
		return nil, err
	}
	f, err := s.storage.Open(clean)
	if err != nil {
		return nil, err
	}
	return &ArchivedReport{File: f, Size: size, Name: path.Base(clean)}, nil
}

// DeleteArchived removes a stored report of the tenant
func (s *ReportService) DeleteArchived(tenantID uint, p string) error {
	clean, err := s.checkArchive(tenantID, p)
	if err != nil {
		return err
	}
	return s.storage.Delete(clean)
}

func uintOrEmpty(v *uint) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
