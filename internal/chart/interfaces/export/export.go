package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"natal-engine/internal/chart/application"
	"natal-engine/internal/chart/domain"
	"natal-engine/internal/observability/metrics"
	"natal-engine/internal/validation/domain"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "xlsx" or "pdf" in any case.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

var errNilChart = errors.New("export: nil chart")

// Render builds the chart document in the given format.
func Render(format Format, natal *application.NatalChart) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatXLSX:
		data, err = BuildChartXLSX(natal)
	case FormatPDF:
		data, err = BuildChartPDF(natal)
	default:
		err = fmt.Errorf("export: unsupported format %q", format)
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveChartExport(string(format), result, time.Since(start))
	return data, err
}

// BuildChartPDF renders a one-page chart summary with positions, aspects and findings.
func BuildChartPDF(natal *application.NatalChart) ([]byte, error) {
	if natal == nil || natal.Snapshot == nil {
		return nil, errNilChart
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Natal Chart")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range summaryLines(natal) {
		pdf.Cell(0, 6, tr(line[0]+": "+line[1]))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Body", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Longitude", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Sign", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Degree", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, pos := range natal.Snapshot.Positions() {
		pdf.CellFormat(40, 6, tr(pos.Body.Label()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.4f", pos.Longitude), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, tr(pos.SignLabel()), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", pos.DegreeInSign), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if natal.Report != nil && len(natal.Report.Aspects) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Body A", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Body B", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Aspect", "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, "Orb", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, a := range natal.Report.Aspects {
			pdf.CellFormat(40, 6, tr(a.BodyA.Label()), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, tr(a.BodyB.Label()), "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 6, string(a.Aspect), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", a.Deviation), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	if natal.Report != nil {
		findings := natal.Report.All()
		if len(findings) > 0 {
			pdf.Ln(4)
			pdf.SetFont("Arial", "B", 10)
			pdf.Cell(0, 6, "Findings")
			pdf.Ln(6)
			pdf.SetFont("Arial", "", 9)
			for _, f := range findings {
				pdf.MultiCell(0, 5, tr(fmt.Sprintf("[%s] %s: %s", f.Severity, f.Code, f.Message)), "", "L", false)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildChartXLSX renders summary, positions, aspects and findings sheets.
func BuildChartXLSX(natal *application.NatalChart) ([]byte, error) {
	if natal == nil || natal.Snapshot == nil {
		return nil, errNilChart
	}
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	positionsSheet := "positions"
	aspectsSheet := "aspects"
	findingsSheet := "findings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{positionsSheet, aspectsSheet, findingsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}

	_ = f.SetCellValue(summarySheet, "A1", "Natal Chart")
	for i, line := range summaryLines(natal) {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), line[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), line[1])
	}

	_ = f.SetCellValue(positionsSheet, "A1", "Body")
	_ = f.SetCellValue(positionsSheet, "B1", "Longitude")
	_ = f.SetCellValue(positionsSheet, "C1", "Sign")
	_ = f.SetCellValue(positionsSheet, "D1", "Degree")
	for i, pos := range natal.Snapshot.Positions() {
		row := i + 2
		_ = f.SetCellValue(positionsSheet, fmt.Sprintf("A%d", row), pos.Body.Label())
		_ = f.SetCellValue(positionsSheet, fmt.Sprintf("B%d", row), pos.Longitude)
		_ = f.SetCellValue(positionsSheet, fmt.Sprintf("C%d", row), pos.SignLabel())
		_ = f.SetCellValue(positionsSheet, fmt.Sprintf("D%d", row), pos.DegreeInSign)
	}

	_ = f.SetCellValue(aspectsSheet, "A1", "Body A")
	_ = f.SetCellValue(aspectsSheet, "B1", "Body B")
	_ = f.SetCellValue(aspectsSheet, "C1", "Aspect")
	_ = f.SetCellValue(aspectsSheet, "D1", "Distance")
	_ = f.SetCellValue(aspectsSheet, "E1", "Orb")
	_ = f.SetCellValue(findingsSheet, "A1", "Severity")
	_ = f.SetCellValue(findingsSheet, "B1", "Code")
	_ = f.SetCellValue(findingsSheet, "C1", "Bodies")
	_ = f.SetCellValue(findingsSheet, "D1", "Message")
	if natal.Report != nil {
		for i, a := range natal.Report.Aspects {
			row := i + 2
			_ = f.SetCellValue(aspectsSheet, fmt.Sprintf("A%d", row), a.BodyA.Label())
			_ = f.SetCellValue(aspectsSheet, fmt.Sprintf("B%d", row), a.BodyB.Label())
			_ = f.SetCellValue(aspectsSheet, fmt.Sprintf("C%d", row), string(a.Aspect))
			_ = f.SetCellValue(aspectsSheet, fmt.Sprintf("D%d", row), a.Distance)
			_ = f.SetCellValue(aspectsSheet, fmt.Sprintf("E%d", row), a.Deviation)
		}
		for i, finding := range natal.Report.All() {
			row := i + 2
			_ = f.SetCellValue(findingsSheet, fmt.Sprintf("A%d", row), string(finding.Severity))
			_ = f.SetCellValue(findingsSheet, fmt.Sprintf("B%d", row), finding.Code)
			_ = f.SetCellValue(findingsSheet, fmt.Sprintf("C%d", row), joinBodies(finding))
			_ = f.SetCellValue(findingsSheet, fmt.Sprintf("D%d", row), finding.Message)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func summaryLines(natal *application.NatalChart) [][2]string {
	moment := natal.Moment
	loc := moment.Location()
	lines := [][2]string{
		{"Date", moment.Date()},
		{"Time", moment.Clock()},
		{"Zone", moment.Zone()},
		{"Latitude", fmt.Sprintf("%.4f", loc.Latitude)},
		{"Longitude", fmt.Sprintf("%.4f", loc.Longitude)},
		{"Valid", fmt.Sprintf("%t", natal.Report.IsValid())},
		{"Errors", fmt.Sprintf("%d", natal.Report.ErrorCount())},
		{"Degraded", fmt.Sprintf("%t", natal.Snapshot.Degraded())},
	}
	for _, e := range chart.Elements() {
		lines = append(lines, [2]string{e.Label(), fmt.Sprintf("%d", natal.Temperament.Points[e])})
	}
	lines = append(lines, [2]string{"Dominant", natal.Temperament.Dominant.Label()})
	if natal.Temperament.HasLacking {
		lines = append(lines, [2]string{"Lacking", natal.Temperament.Lacking.Label()})
	}
	if natal.Ruler.Present {
		lines = append(lines, [2]string{"Chart ruler", fmt.Sprintf("%s in %s (%s)",
			natal.Ruler.Planet.Label(), natal.Ruler.Position.SignLabel(), natal.Ruler.Dignity)})
	}
	if !natal.ComputedAt.IsZero() {
		lines = append(lines, [2]string{"Generated", natal.ComputedAt.Format(time.RFC3339)})
	}
	return lines
}

func joinBodies(f validation.Finding) string {
	labels := make([]string, 0, len(f.Bodies))
	for _, b := range f.Bodies {
		labels = append(labels, b.Label())
	}
	return strings.Join(labels, ", ")
}
