package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a borderless key/value style table, used for index stats and
// version output. Columns are separated by two spaces.
type Table struct {
	rows   [][]string
	widths []int
}

func NewTable(cols int) *Table {
	return &Table{widths: make([]int, cols)}
}

// AddRow adds a row to the table. Cells may carry ANSI styling.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.widths))
	for i := 0; i < len(t.widths) && i < len(cells); i++ {
		row[i] = cells[i]
		t.widths[i] = max(t.widths[i], lipgloss.Width(cells[i]))
	}
	t.rows = append(t.rows, row)
}

func (t *Table) String() string {
	var sb strings.Builder
	for _, row := range t.rows {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", t.widths[i]-lipgloss.Width(cell)))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
