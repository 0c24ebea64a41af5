package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 297.0
	pdfMargin     = 10.0
	pdfRowHeight  = 7.0
	pdfHeadHeight = 8.0
	ellipsis      = "..."
)

// PDFExporter renders datasets into a landscape A4 table whose header row is
// repeated on every page.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType is the MIME type of the rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension is the file extension of the rendered output.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates the PDF document.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("pdf"); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	// Core fonts are cp1252; translate so names with accents survive.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	widths := columnWidths(data.Columns, pdfPageWidth-2*pdfMargin)
	titles := data.titles()

	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() == 1 && data.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(data.Title), "", 1, "C", false, 0, "")
			if !data.GeneratedAt.IsZero() {
				pdf.SetFont("Arial", "", 8)
				pdf.CellFormat(0, 5, "Generated "+data.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "C", false, 0, "")
			}
			pdf.Ln(3)
		}
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, title := range titles {
			pdf.CellFormat(widths[i], pdfHeadHeight, tr(title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		for i, col := range data.Columns {
			text := fit(pdf, tr(row[col.Key]), widths[i]-2)
			pdf.CellFormat(widths[i], pdfRowHeight, text, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(columns []Column, total float64) []float64 {
	var sum float64
	weights := make([]float64, len(columns))
	for i, col := range columns {
		weights[i] = col.Width
		if weights[i] <= 0 {
			weights[i] = 1
		}
		sum += weights[i]
	}
	widths := make([]float64, len(columns))
	for i, w := range weights {
		widths[i] = total * w / sum
	}
	return widths
}

// fit truncates text so it renders within width using the current font.
func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ellipsis
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}
