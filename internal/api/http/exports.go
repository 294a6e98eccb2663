package apihttp

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "github.com/patrickjcash/delco-water-hass/internal/billing/domain"
	"github.com/patrickjcash/delco-water-hass/internal/observability/metrics"
	refresh "github.com/patrickjcash/delco-water-hass/internal/refresh/application"
)

// ExportBillingHandler serves the latest assembled billing records as a
// downloadable file. Format is one of csv, xlsx or pdf.
type ExportBillingHandler struct {
	runner Runner
	format string
}

// NewExportBillingHandler constructs an ExportBillingHandler.
func NewExportBillingHandler(runner Runner, format string) (*ExportBillingHandler, error) {
	switch format {
	case "csv", "xlsx", "pdf":
	default:
		return nil, fmt.Errorf("export handler: unsupported format %q", format)
	}
	if runner == nil {
		return nil, fmt.Errorf("export handler: nil runner")
	}
	return &ExportBillingHandler{runner: runner, format: format}, nil
}

// ServeHTTP handles GET /api/v1/exports/billing.<format>.
func (h *ExportBillingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	started := time.Now()
	status := h.runner.Status()

	var content []byte
	var contentType string
	var err error
	switch h.format {
	case "csv":
		content, err = buildBillingCSV(status.Records)
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		content, err = buildBillingXLSX(status)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		content, err = buildBillingPDF(status)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveExport(h.format, metrics.ResultError, time.Since(started))
		http.Error(w, "export build error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(h.format, metrics.ResultSuccess, time.Since(started))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="billing.`+h.format+`"`)
	_, _ = w.Write(content)
}

func buildBillingCSV(records []billing.Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{
		"bill_id",
		"bill_date",
		"read_date",
		"due_date",
		"bill_amount",
		"service_from",
		"service_to",
		"prior_reading",
		"current_reading",
		"usage_gallons",
		"charge_amount",
		"layout",
	})
	for _, rec := range records {
		_ = writer.Write([]string{
			rec.BillID,
			rec.BillDate,
			rec.ReadDate,
			rec.DueDate,
			rec.BillAmount.StringFixed(2),
			rec.ServiceFrom.Format(dateLayout),
			rec.ServiceTo.Format(dateLayout),
			fmt.Sprintf("%d", rec.PriorReading),
			fmt.Sprintf("%d", rec.CurrentReading),
			fmt.Sprintf("%d", rec.UsageGallons),
			rec.ChargeAmount.StringFixed(2),
			string(rec.Layout),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildBillingXLSX(status refresh.Status) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	recordsSheet := "bills"
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Del-Co Water Billing History")
	if status.HasSnapshot {
		snap := status.Snapshot
		_ = f.SetCellValue(summarySheet, "A3", "Account")
		_ = f.SetCellValue(summarySheet, "B3", snap.AccountID)
		_ = f.SetCellValue(summarySheet, "A4", "Balance Due")
		_ = f.SetCellValue(summarySheet, "B4", snap.AccountBalance.InexactFloat64())
		_ = f.SetCellValue(summarySheet, "A5", "Previous Balance")
		_ = f.SetCellValue(summarySheet, "B5", snap.PreviousBalance.InexactFloat64())
		_ = f.SetCellValue(summarySheet, "A6", "Latest Bill")
		_ = f.SetCellValue(summarySheet, "B6", snap.LatestBillAmount.InexactFloat64())
		_ = f.SetCellValue(summarySheet, "A7", "Latest Payment")
		_ = f.SetCellValue(summarySheet, "B7", snap.LatestPayment.InexactFloat64())
		_ = f.SetCellValue(summarySheet, "A8", "Latest Monthly Usage (gal)")
		_ = f.SetCellValue(summarySheet, "B8", snap.LatestUsageGallons)
		_ = f.SetCellValue(summarySheet, "A9", "Taken At")
		_ = f.SetCellValue(summarySheet, "B9", snap.TakenAt.Format(time.RFC3339))
	}
	_ = f.SetCellValue(summarySheet, "A11", "Bills")
	_ = f.SetCellValue(summarySheet, "B11", len(status.Records))

	headers := []string{"Bill ID", "Bill Date", "Service From", "Service To", "Prior", "Current", "Usage (gal)", "Charge", "Bill Amount", "Layout"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(recordsSheet, cell, header)
	}
	for i, rec := range status.Records {
		row := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), rec.BillID)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), rec.BillDate)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), rec.ServiceFrom.Format(dateLayout))
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), rec.ServiceTo.Format(dateLayout))
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", row), rec.PriorReading)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("F%d", row), rec.CurrentReading)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("G%d", row), rec.UsageGallons)
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("H%d", row), rec.ChargeAmount.InexactFloat64())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("I%d", row), rec.BillAmount.InexactFloat64())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("J%d", row), string(rec.Layout))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildBillingPDF(status refresh.Status) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Del-Co Water Billing History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if status.HasSnapshot {
		snap := status.Snapshot
		pdf.Cell(0, 6, fmt.Sprintf("Account: %s", snap.AccountID))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Balance Due: $%s", snap.AccountBalance.StringFixed(2)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", snap.TakenAt.Format(time.RFC3339)))
		pdf.Ln(8)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(28, 6, "Bill Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "From", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "To", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Usage (gal)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Charge", "1", 0, "C", false, 0, "")
	pdf.CellFormat(32, 6, "Bill Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range status.Records {
		pdf.CellFormat(28, 6, rec.BillDate, "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, rec.ServiceFrom.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, rec.ServiceTo.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(32, 6, fmt.Sprintf("%d", rec.UsageGallons), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, "$"+rec.ChargeAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(32, 6, "$"+rec.BillAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
