package pdf

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Field is one labelled value on the document
type Field struct {
	Label string
	Value string
}

// Section is a titled group of fields
type Section struct {
	Title  string
	Fields []Field
}

// Document holds everything rendered into a submission PDF
type Document struct {
	Title        string
	SubmissionID string
	SubmittedAt  time.Time
	Sections     []Section
	Meta         []Field // footer block (ip, user agent, browser)
}

// Page geometry (A4, mm)
const (
	pageWidth   = 210.0
	marginLeft  = 15.0
	marginRight = 15.0
	marginTop   = 15.0
	qrSize      = 28.0
	labelWidth  = 62.0
	lineHeight  = 5.5
)

// QRContent is the reference encoded in the document's QR code
func QRContent(submissionID string) string {
	return "CREXPRESS/SUBMISSION/" + submissionID
}

// RenderSubmission creates the PDF for a submission
func RenderSubmission(doc Document) ([]byte, error) {
	if doc.SubmissionID == "" {
		return nil, fmt.Errorf("submission id is required")
	}
	title := doc.Title
	if title == "" {
		title = "Form Submission"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, 18)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "", 7)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(120, 5, tr(fmt.Sprintf("Submission %s", doc.SubmissionID)), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AliasNbPages("")
	pdf.AddPage()

	// QR code of the submission reference, top right
	qrPng, err := qrcode.Encode(QRContent(doc.SubmissionID), qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("qr_submission", imgOptions, bytes.NewReader(qrPng))
	pdf.ImageOptions("qr_submission", pageWidth-marginRight-qrSize, marginTop, qrSize, qrSize, false, imgOptions, 0, "")

	// Header
	textWidth := pageWidth - marginLeft - marginRight - qrSize - 4
	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(20, 40, 80)
	pdf.MultiCell(textWidth, 8, tr(title), "", "L", false)
	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(textWidth, 5, tr("Submission ID: "+doc.SubmissionID), "", 1, "L", false, 0, "")
	if !doc.SubmittedAt.IsZero() {
		pdf.CellFormat(textWidth, 5, "Submitted: "+doc.SubmittedAt.UTC().Format("January 2, 2006 15:04 MST"), "", 1, "L", false, 0, "")
	}
	if y := marginTop + qrSize + 4; pdf.GetY() < y {
		pdf.SetY(y)
	}

	for _, s := range doc.Sections {
		writeSection(pdf, tr, s)
	}

	if len(doc.Meta) > 0 {
		writeSection(pdf, tr, Section{Title: "Submission Metadata", Fields: doc.Meta})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gofpdf.Fpdf, tr func(string) string, s Section) {
	if len(s.Fields) == 0 {
		return
	}
	width := pageWidth - marginLeft - marginRight

	pdf.Ln(3)
	pdf.SetFillColor(230, 236, 245)
	pdf.SetTextColor(20, 40, 80)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(width, 7, tr(s.Title), "", 1, "L", true, 0, "")
	pdf.Ln(1)

	for _, f := range s.Fields {
		value := f.Value
		if strings.TrimSpace(value) == "" {
			value = "N/A"
		}
		y := pdf.GetY()
		pdf.SetFont("Arial", "B", 9)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(labelWidth, lineHeight, tr(f.Label), "", "L", false)
		labelEnd := pdf.GetY()

		// Value column starts at the label's first line
		pdf.SetXY(marginLeft+labelWidth, y)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(width-labelWidth, lineHeight, tr(value), "", "L", false)
		if pdf.GetY() < labelEnd {
			pdf.SetY(labelEnd)
		}
	}
}

// onboardingSections maps known carrier onboarding field prefixes to titles
var onboardingSections = []struct {
	title    string
	prefixes []string
}{
	{"Company Information", []string{"companyLegalName", "companyDbaName", "companyType", "division", "branch", "mc", "dot", "scac", "yearFounded"}},
	{"Primary Contact", []string{"primaryContact"}},
	{"Secondary Contact", []string{"secondaryContact"}},
	{"Escalation Contact", []string{"escalationContact"}},
	{"Accounts Payable", []string{"accountsPayable"}},
	{"Billing Information", []string{"billing", "invoicing", "paymentMethod"}},
	{"Operations", []string{"shipment", "equipment", "additionalRequirements", "monthlyShipments", "exceptionCommunication", "reviewFrequency"}},
}

// SectionsFromPayload groups payload fields into document sections. Known
// onboarding fields are grouped by prefix; the rest lands in a trailing
// alphabetical section.
func SectionsFromPayload(payload map[string]interface{}) []Section {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := make(map[string]bool, len(keys))
	var sections []Section
	for _, group := range onboardingSections {
		var fields []Field
		for _, k := range keys {
			if used[k] || !hasAnyPrefix(k, group.prefixes) {
				continue
			}
			used[k] = true
			fields = append(fields, Field{Label: Humanize(k), Value: FormatValue(payload[k])})
		}
		if len(fields) > 0 {
			sections = append(sections, Section{Title: group.title, Fields: fields})
		}
	}

	var rest []Field
	for _, k := range keys {
		if !used[k] {
			rest = append(rest, Field{Label: Humanize(k), Value: FormatValue(payload[k])})
		}
	}
	if len(rest) > 0 {
		title := "Additional Information"
		if len(sections) == 0 {
			title = "Submission Details"
		}
		sections = append(sections, Section{Title: title, Fields: rest})
	}
	return sections
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// Humanize turns a camelCase or snake_case key into a label
func Humanize(key string) string {
	var b strings.Builder
	prevLower := false
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteRune(' ')
		}
		if i == 0 {
			r = unicode.ToUpper(r)
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FormatValue renders a payload value as text. Stored strings are
// HTML-escaped, so entities are decoded for print.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return html.UnescapeString(t)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, Humanize(k)+": "+FormatValue(t[k]))
		}
		return strings.Join(parts, "; ")
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
