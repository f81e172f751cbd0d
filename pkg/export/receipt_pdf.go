package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Receipt describes the content of a payment receipt document.
type Receipt struct {
	Title     string
	Reference string
	Lines     []ReceiptLine
	Footer    string
}

// ReceiptLine is one labelled value on the receipt.
type ReceiptLine struct {
	Label string
	Value string
}

// ReceiptPDFExporter renders payment receipts as PDF documents.
type ReceiptPDFExporter struct{}

// NewReceiptPDFExporter constructs a receipt exporter.
func NewReceiptPDFExporter() *ReceiptPDFExporter {
	return &ReceiptPDFExporter{}
}

// Render creates the receipt PDF.
func (e *ReceiptPDFExporter) Render(receipt Receipt) ([]byte, error) {
	if receipt.Reference == "" {
		return nil, fmt.Errorf("receipt requires a payment reference")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	title := receipt.Title
	if title == "" {
		title = "Payment Receipt"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 12, strings.ToUpper(title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 8, fmt.Sprintf("Reference: %s", receipt.Reference), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	labelWidth := 60.0
	valueWidth := 120.0
	for _, line := range receipt.Lines {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 9, line.Label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(valueWidth, 9, line.Value, "1", 1, "L", false, 0, "")
	}

	if receipt.Footer != "" {
		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 6, receipt.Footer, "", "C", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
