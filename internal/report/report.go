package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/jung-kurt/gofpdf"
)

// Patient holds the intake answers collected before a scan is analyzed.
type Patient struct {
	Name     string
	Age      string
	Gender   string
	Symptoms []string
	Reasons  []string
}

// doctorNotes maps each diagnostic label to the recommendation printed on
// the report.
var doctorNotes = map[string]string{
	"NonDemented":      "No signs of dementia detected. Maintain regular check-ups.",
	"VeryMildDemented": "Very mild cognitive symptoms observed. Recommend monitoring.",
	"MildDemented":     "Mild dementia detected. Clinical evaluation advised.",
	"ModerateDemented": "Moderate dementia identified. Consult a neurologist promptly.",
}

const fallbackNote = "Further evaluation advised."

// DoctorNote returns the recommendation for a diagnostic label.
func DoctorNote(label string) string {
	if note, ok := doctorNotes[label]; ok {
		return note
	}
	return fallbackNote
}

// Generate renders a one-page PDF scan report. The scan image is embedded
// when it is a format the PDF library understands; otherwise the report is
// produced without it.
func Generate(p Patient, label string, confidence float32, scan []byte) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "MRI Screening Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, time.Now().UTC().Format("January 2, 2006 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	section(pdf, "Patient Demographics")
	line(pdf, fmt.Sprintf("Name: %s", p.Name))
	line(pdf, fmt.Sprintf("Age: %s", p.Age))
	line(pdf, fmt.Sprintf("Gender: %s", p.Gender))
	pdf.Ln(4)

	section(pdf, "Medical Examination Findings")
	line(pdf, "Symptoms:")
	for _, s := range orDefault(p.Symptoms, "None reported") {
		bullet(pdf, s)
	}
	line(pdf, "Reason for Scan:")
	for _, r := range orDefault(p.Reasons, "Not specified") {
		bullet(pdf, r)
	}
	pdf.Ln(4)

	section(pdf, "Diagnostic Results")
	line(pdf, fmt.Sprintf("Predicted Diagnosis: %s (%.0f%% confidence)", label, confidence*100))

	if imageType := detectImageType(scan); imageType != "" {
		opts := gofpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader("scan", opts, bytes.NewReader(scan))
		pdf.ImageOptions("scan", 130, pdf.GetY()+4, 60, 60, false, opts, 0, "")
	}
	pdf.Ln(8)

	section(pdf, "Doctor's Recommendation")
	line(pdf, DoctorNote(label))

	pdf.SetY(-20)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 5, "Note: generated by an automated screening tool - not a clinical diagnosis.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
}

func line(pdf *gofpdf.Fpdf, text string) {
	pdf.SetX(15)
	pdf.CellFormat(0, 6, text, "", 1, "L", false, 0, "")
}

func bullet(pdf *gofpdf.Fpdf, text string) {
	pdf.SetX(20)
	pdf.CellFormat(0, 6, "- "+text, "", 1, "L", false, 0, "")
}

func orDefault(values []string, fallback string) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return []string{fallback}
	}
	return cleaned
}

func detectImageType(scan []byte) string {
	if len(scan) == 0 {
		return ""
	}
	mime := mimetype.Detect(scan)
	switch {
	case mime.Is("image/png"):
		return "PNG"
	case mime.Is("image/jpeg"):
		return "JPG"
	case mime.Is("image/gif"):
		return "GIF"
	default:
		return ""
	}
}
