package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres on US Letter
const (
	pageMargin = 19.05
	lineHeight = 6.0
)

var (
	titleColor   = [3]int{0x1a, 0x54, 0x90}
	headingColor = [3]int{0x2c, 0x5a, 0xa0}
	headerFill   = [3]int{0x4a, 0x90, 0xe2}
	stripeFill   = [3]int{0xee, 0xee, 0xee}
)

// Render draws the layout as a PDF document held in memory
func Render(l Layout) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(l.Title, true)
	pdf.SetCreator("equipment-api", true)
	pdf.AddPage()

	// Core fonts are cp1252; translate the unit symbols
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(titleColor[0], titleColor[1], titleColor[2])
	pdf.CellFormat(0, 12, tr(l.Title), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, lineHeight, tr(l.GeneratedOn), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetTextColor(0, 0, 0)
	for _, info := range l.Info {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, lineHeight, tr(info.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, lineHeight, tr(info.Value), "", 1, "L", false, 0, "")
	}

	heading(pdf, tr, "Summary Statistics")
	widths := []float64{63.5, 38.1, 30.5}
	tableHeader(pdf, tr, widths, []string{"Metric", "Value", "Unit"})
	for i, s := range l.Statistics {
		tableRow(pdf, tr, widths, []string{s.Metric, s.Value, s.Unit}, i%2 == 1)
	}

	heading(pdf, tr, "Equipment Type Distribution")
	widths = []float64{71.1, 30.5, 30.5}
	tableHeader(pdf, tr, widths, []string{"Equipment Type", "Count", "Percentage"})
	for i, d := range l.Distribution {
		tableRow(pdf, tr, widths, []string{d.Type, fmt.Sprint(d.Count), d.Percentage}, i%2 == 1)
	}

	heading(pdf, tr, "Equipment Data")
	if l.EmptyMessage != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, lineHeight, tr(l.EmptyMessage), "", 1, "L", false, 0, "")
	} else {
		widths = []float64{38.1, 33.0, 25.4, 25.4, 20.3}
		tableHeader(pdf, tr, widths, []string{"Equipment Name", "Type", "Flowrate (m³/h)", "Pressure (bar)", "Temp (°C)"})
		for i, r := range l.DataRows {
			tableRow(pdf, tr, widths, []string{r.Name, r.Type, r.Flowrate, r.Pressure, r.Temperature}, i%2 == 1)
		}
		if l.Omitted != "" {
			total := 0.0
			for _, w := range widths {
				total += w
			}
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(total, lineHeight, tr(l.Omitted), "1", 1, "C", false, 0, "")
		}
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, lineHeight, tr(l.Footer), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func heading(pdf *fpdf.Fpdf, tr func(string) string, text string) {
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(headingColor[0], headingColor[1], headingColor[2])
	pdf.CellFormat(0, 9, tr(text), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)
}

func tableHeader(pdf *fpdf.Fpdf, tr func(string) string, widths []float64, cells []string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
	pdf.SetTextColor(245, 245, 245)
	for i, c := range cells {
		pdf.CellFormat(widths[i], lineHeight+2, tr(c), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func tableRow(pdf *fpdf.Fpdf, tr func(string) string, widths []float64, cells []string, striped bool) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetFillColor(stripeFill[0], stripeFill[1], stripeFill[2])
	for i, c := range cells {
		pdf.CellFormat(widths[i], lineHeight, tr(c), "1", 0, "C", striped, 0, "")
	}
	pdf.Ln(-1)
}
