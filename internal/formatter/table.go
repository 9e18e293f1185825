// Package formatter renders report tables as aligned markdown text.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const minColumnWidth = 3

// Table renders a header and rows as an aligned markdown table.
func Table(header []string, rows [][]string) []string {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, header)
	table = append(table, rows...)

	return align(table)
}

// align pads every cell to its column's display width and writes a
// separator row after the first row.
func align(table [][]string) []string {
	colCount := 0
	for _, row := range table {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	widths := make([]int, colCount)
	for i := range widths {
		widths[i] = minColumnWidth
	}

	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	result := make([]string, 0, len(table)+1)

	for r, row := range table {
		result = append(result, renderRow(row, widths, false))

		if r == 0 {
			result = append(result, renderRow(nil, widths, true))
		}
	}

	return result
}

func renderRow(row []string, widths []int, separator bool) string {
	var sb strings.Builder

	sb.WriteString("|")

	for j, width := range widths {
		sb.WriteString(" ")

		if separator {
			sb.WriteString(strings.Repeat("-", width))
		} else {
			content := ""
			if j < len(row) {
				content = row[j]
			}

			sb.WriteString(runewidth.FillRight(content, width))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
