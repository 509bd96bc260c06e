// Package export renders printable PDFs of department matrices and application receipts.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// MatrixSheet is the printable form of a department matrix
type MatrixSheet struct {
	Department   string
	Status       string
	RejectReason string
	Columns      []string
	Rows         []MatrixSheetRow
	GeneratedAt  time.Time
}

type MatrixSheetRow struct {
	Position string
	Status   string
	Required []bool // aligned with MatrixSheet.Columns
}

// Receipt is the printable confirmation of a trainee application
type Receipt struct {
	ApplicationID string
	Trainee       string
	Position      string
	Department    string
	Status        string
	SubmittedAt   *time.Time
	Documents     []ReceiptLine
	VerifyURL     string // encoded into the QR code
}

type ReceiptLine struct {
	Document string
	Status   string
	Uploaded bool
}

const (
	positionColW = 55.0
	statusColW   = 22.0
	rowH         = 7.0
	headerH      = 10.0
	margin       = 10.0
)

// MatrixPDF renders the matrix as a landscape grid, one column per document.
func MatrixPDF(sheet MatrixSheet) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	docColW := 0.0
	if n := len(sheet.Columns); n > 0 {
		docColW = (pageW - 2*margin - positionColW - statusColW) / float64(n)
	}

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(positionColW, headerH, "Position", "1", 0, "L", true, 0, "")
		pdf.CellFormat(statusColW, headerH, "Status", "1", 0, "C", true, 0, "")
		for _, col := range sheet.Columns {
			pdf.CellFormat(docColW, headerH, tr(clip(pdf, col, docColW)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 8, tr(sheet.Department+" - document matrix"), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		line := fmt.Sprintf("Status: %s    Generated: %s", sheet.Status, sheet.GeneratedAt.Format("2006-01-02 15:04"))
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
		if sheet.RejectReason != "" {
			pdf.CellFormat(0, 6, tr("Reject reason: "+sheet.RejectReason), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	pdf.SetFont("Arial", "", 8)
	for _, row := range sheet.Rows {
		pdf.CellFormat(positionColW, rowH, tr(clip(pdf, row.Position, positionColW)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(statusColW, rowH, row.Status, "1", 0, "C", false, 0, "")
		for i := range sheet.Columns {
			mark := ""
			if i < len(row.Required) && row.Required[i] {
				mark = "X"
			}
			pdf.CellFormat(docColW, rowH, mark, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(sheet.Rows) == 0 {
		pdf.CellFormat(0, rowH, "No positions in this matrix.", "", 1, "L", false, 0, "")
	}

	return output(pdf)
}

// ReceiptPDF renders an application receipt with a QR code pointing at VerifyURL.
func ReceiptPDF(r Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Application receipt", "", 1, "L", false, 0, "")

	qrContent := r.VerifyURL
	if qrContent == "" {
		qrContent = r.ApplicationID
	}
	qrPng, err := qrcode.Encode(qrContent, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("qr", 155, 15, 40, 40, false, imgOptions, 0, "")

	pdf.SetFont("Arial", "", 10)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(100, 7, tr(value), "", 1, "L", false, 0, "")
	}
	field("Application", r.ApplicationID)
	field("Trainee", r.Trainee)
	field("Department", r.Department)
	field("Position", r.Position)
	field("Status", r.Status)
	submitted := "-"
	if r.SubmittedAt != nil {
		submitted = r.SubmittedAt.Format("2006-01-02 15:04")
	}
	field("Submitted", submitted)

	pdf.SetY(65)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(110, 8, "Document", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Uploaded", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Status", "1", 1, "C", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, line := range r.Documents {
		uploaded := "no"
		if line.Uploaded {
			uploaded = "yes"
		}
		pdf.CellFormat(110, 7, tr(clip(pdf, line.Document, 110)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, uploaded, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, line.Status, "1", 1, "C", false, 0, "")
	}

	return output(pdf)
}

// clip shortens s with an ellipsis so it fits into a cell of width w.
func clip(pdf *gofpdf.Fpdf, s string, w float64) string {
	limit := w - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
