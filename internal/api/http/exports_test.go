package apihttp

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestExportBillingCSV(t *testing.T) {
	runner := &stubRunner{status: testStatus(t)}
	handler, err := NewExportBillingHandler(runner, "csv")
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/billing.csv", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("content type = %q", got)
	}
	rows, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "bill_id" {
		t.Fatalf("header = %v", rows[0])
	}
	row := rows[1]
	if row[0] != "B0801" || row[6] != "2025-08-29" || row[9] != "22" || row[10] != "41.10" {
		t.Fatalf("row = %v", row)
	}
}

func TestExportBillingXLSX(t *testing.T) {
	runner := &stubRunner{status: testStatus(t)}
	handler, err := NewExportBillingHandler(runner, "xlsx")
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/billing.xlsx", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	account, err := f.GetCellValue("summary", "B3")
	if err != nil {
		t.Fatalf("summary cell: %v", err)
	}
	if account != "00123456-00" {
		t.Fatalf("account = %q", account)
	}
	billID, err := f.GetCellValue("bills", "A2")
	if err != nil {
		t.Fatalf("bills cell: %v", err)
	}
	if billID != "B0801" {
		t.Fatalf("bill id = %q", billID)
	}
}

func TestExportBillingPDF(t *testing.T) {
	runner := &stubRunner{status: testStatus(t)}
	handler, err := NewExportBillingHandler(runner, "pdf")
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/exports/billing.pdf", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a PDF")
	}
}

func TestExportBillingUnsupportedFormat(t *testing.T) {
	if _, err := NewExportBillingHandler(&stubRunner{}, "docx"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExportBillingMethodNotAllowed(t *testing.T) {
	handler, err := NewExportBillingHandler(&stubRunner{}, "csv")
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/exports/billing.csv", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
