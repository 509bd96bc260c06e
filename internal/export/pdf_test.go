package export

import (
	"bytes"
	"testing"
	"time"
)

func TestMatrixPDF(t *testing.T) {
	sheet := MatrixSheet{
		Department:  "Flight Operations",
		Status:      "Drafted",
		Columns:     []string{"Medical certificate", "Passport", "English proficiency level 4 or higher"},
		GeneratedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Rows: []MatrixSheetRow{
			{Position: "First Officer", Status: "Pending", Required: []bool{true, true, false}},
			{Position: "Captain", Status: "Approve", Required: []bool{true}},
		},
	}

	out, err := MatrixPDF(sheet)
	if err != nil {
		t.Fatalf("MatrixPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}

func TestMatrixPDFEmpty(t *testing.T) {
	out, err := MatrixPDF(MatrixSheet{Department: "Cabin Crew", Status: "Undrafted", GeneratedAt: time.Now()})
	if err != nil {
		t.Fatalf("MatrixPDF: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("empty output")
	}
}

func TestReceiptPDF(t *testing.T) {
	submitted := time.Date(2026, 5, 2, 14, 30, 0, 0, time.UTC)
	out, err := ReceiptPDF(Receipt{
		ApplicationID: "5f0c5a0e-8a53-4c4f-9a52-0d4b8b1f3e11",
		Trainee:       "trainee01",
		Position:      "First Officer",
		Department:    "Flight Operations",
		Status:        "Submitted",
		SubmittedAt:   &submitted,
		VerifyURL:     "https://academy.test/applications/5f0c5a0e-8a53-4c4f-9a52-0d4b8b1f3e11",
		Documents: []ReceiptLine{
			{Document: "Passport", Status: "Pending", Uploaded: true},
			{Document: "Medical certificate", Status: "Pending", Uploaded: true},
		},
	})
	if err != nil {
		t.Fatalf("ReceiptPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF")
	}
}
