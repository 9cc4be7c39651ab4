package plot

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

const barGlyph = "█"

// ScoreTable formats aligned label/score rows, with a class-average
// column when the series is present. Rows stop at the shortest input.
func ScoreTable(labels []string, scores, classAvg []float64) []string {
	n := len(labels)
	if len(scores) < n {
		n = len(scores)
	}
	if n == 0 {
		return nil
	}
	withAvg := len(classAvg) > 0

	headers := []string{"Item", "Score"}
	if withAvg {
		headers = append(headers, "Class Avg")
	}
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row := []string{labels[i], formatScore(scores[i])}
		if withAvg {
			avg := ""
			if i < len(classAvg) {
				avg = formatScore(classAvg[i])
			}
			row = append(row, avg)
		}
		rows = append(rows, row)
	}
	rightAlign := map[int]bool{1: true, 2: true}
	return formatTable(headers, rows, rightAlign)
}

// Bars renders one horizontal bar per label, scaled to the maximum
// value, for a quick per-item comparison without a second axis.
func Bars(labels []string, values []float64, width int) []string {
	n := len(labels)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return nil
	}
	labelWidth := 0
	maxVal := 0.0
	for i := 0; i < n; i++ {
		if w := runewidth.StringWidth(labels[i]); w > labelWidth {
			labelWidth = w
		}
		if values[i] > maxVal {
			maxVal = values[i]
		}
	}
	barSpace := width - labelWidth - 10
	if barSpace < 5 {
		barSpace = 5
	}
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		barLen := 0
		if maxVal > 0 && values[i] > 0 {
			barLen = int(values[i] / maxVal * float64(barSpace))
			if barLen == 0 {
				barLen = 1
			}
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			padCell(labels[i], labelWidth, false),
			strings.Repeat(barGlyph, barLen),
			formatScore(values[i])))
	}
	return lines
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i := 0; i < colCount; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, formatRow(headers, widths, rightAlignCols))
	}
	for _, row := range rows {
		lines = append(lines, formatRow(row, widths, rightAlignCols))
	}
	return lines
}

func formatRow(row []string, widths []int, rightAlignCols map[int]bool) string {
	var b strings.Builder
	for i := 0; i < len(widths); i++ {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(padCell(cell, widths[i], rightAlignCols[i]))
	}
	return strings.TrimRight(b.String(), " ")
}

func padCell(value string, width int, rightAlign bool) string {
	valueWidth := runewidth.StringWidth(value)
	if valueWidth >= width {
		return value
	}
	padding := width - valueWidth
	if rightAlign {
		return strings.Repeat(" ", padding) + value
	}
	return value + strings.Repeat(" ", padding)
}
