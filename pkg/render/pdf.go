package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Field places one resolved value onto the page. X and Y are percentages of
// the page width/height, matching the template layout editor.
type Field struct {
	Name       string
	Value      string
	X          float64
	Y          float64
	FontFamily string
	FontStyle  string
	FontSize   float64
	Align      string
}

// Request describes one certificate page for the renderer.
type Request struct {
	Orientation    string
	PageSize       string
	Background     []byte
	BackgroundType string
	Fields         []Field
	HTMLBody       string
	QRImage        []byte
	QRX            float64
	QRY            float64
	QRSizeMM       float64
}

// PDFRenderer produces certificate PDFs from resolved field values.
// Coordinate layouts are drawn over an optional background image; the legacy
// mode writes a substituted HTML body using gofpdf's basic HTML support.
type PDFRenderer struct{}

// NewPDFRenderer constructs a renderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render produces the PDF bytes for one certificate.
func (r *PDFRenderer) Render(req Request) ([]byte, error) {
	orientation := req.Orientation
	if orientation == "" {
		orientation = "L"
	}
	pageSize := req.PageSize
	if pageSize == "" {
		pageSize = "A4"
	}

	pdf := gofpdf.New(orientation, "mm", pageSize, "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()

	if len(req.Background) > 0 {
		imgType := req.BackgroundType
		if imgType == "" {
			imgType = "PNG"
		}
		opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("background", opts, bytes.NewReader(req.Background))
		pdf.ImageOptions("background", 0, 0, pageW, pageH, false, opts, 0, "")
	}

	if len(req.Fields) > 0 {
		r.drawFields(pdf, req.Fields, pageW, pageH)
	} else if req.HTMLBody != "" {
		pdf.SetMargins(20, 25, 20)
		pdf.SetXY(20, 25)
		pdf.SetFont("Arial", "", 12)
		html := pdf.HTMLBasicNew()
		html.Write(6, req.HTMLBody)
	}

	if len(req.QRImage) > 0 {
		size := req.QRSizeMM
		if size <= 0 {
			size = 25
		}
		x := pageW*req.QRX/100 - size/2
		y := pageH*req.QRY/100 - size/2
		if req.QRX <= 0 && req.QRY <= 0 {
			x = pageW - size - 10
			y = pageH - size - 10
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(req.QRImage))
		pdf.ImageOptions("qr", x, y, size, size, false, opts, 0, "")
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render certificate: %v", pdf.Error())
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) drawFields(pdf *gofpdf.Fpdf, fields []Field, pageW, pageH float64) {
	for _, field := range fields {
		if field.Value == "" {
			continue
		}
		family := field.FontFamily
		if family == "" {
			family = "Arial"
		}
		size := field.FontSize
		if size <= 0 {
			size = 14
		}
		pdf.SetFont(family, normalizeStyle(field.FontStyle), size)

		width := pdf.GetStringWidth(field.Value)
		x := pageW * field.X / 100
		y := pageH * field.Y / 100
		switch strings.ToUpper(field.Align) {
		case "L":
			// anchor at the given point
		case "R":
			x -= width
		default:
			x -= width / 2
		}
		pdf.Text(x, y, field.Value)
	}
}

func normalizeStyle(style string) string {
	switch strings.ToLower(style) {
	case "bold":
		return "B"
	case "italic":
		return "I"
	case "bolditalic", "bold-italic":
		return "BI"
	default:
		return strings.ToUpper(style)
	}
}
