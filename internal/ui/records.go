package ui

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// column sizes one column of a listing. Columns with a ratio share the width
// left over after the fixed columns.
type column struct {
	ratio float64
	min   int
	max   int
	right bool
	muted bool
}

var (
	colNum     = column{min: 3, max: 6, right: true, muted: true}
	colTitle   = column{ratio: 0.55, min: 24, max: 80}
	colContext = column{ratio: 0.45, min: 16, max: 60, muted: true}
	colYear    = column{min: 4, right: true, muted: true}
	colKey     = column{min: 8, max: 12, right: true, muted: true}
	colCount   = column{min: 6, right: true, muted: true}

	recordColumns   = []column{colNum, colTitle, colContext, colYear, colKey}
	namedSetColumns = []column{colNum, colTitle, colCount}
)

const (
	columnGap  = 2
	leftMargin = 2
)

// RecordRow is one line of a record listing.
type RecordRow struct {
	Num     int    // row number shown to the user, 1-based
	Title   string
	Context string // "artist - album", "show - season", parent title
	Year    string
	Key     string
}

// NamedSetRow is one line of a playlist listing.
type NamedSetRow struct {
	Num     int
	Name    string
	Members int
}

// RenderRecords lays out record rows for a terminal width columns wide.
// maxNum is the largest row number in the full result list, so that a
// subset keeps the numbering width of the original table.
func RenderRecords(width, maxNum int, rows []RecordRow) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{FormatRowNum(r.Num, maxNum), r.Title, r.Context, r.Year, r.Key}
	}
	return render(width, recordColumns, cells)
}

// RenderNamedSets lays out playlist rows for a terminal width columns wide.
func RenderNamedSets(width int, rows []NamedSetRow) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{FormatRowNum(r.Num, len(rows)), r.Name, strconv.Itoa(r.Members)}
	}
	return render(width, namedSetColumns, cells)
}

// fitColumns computes column widths for the terminal width.
func fitColumns(width int, cols []column) []int {
	widths := make([]int, len(cols))
	fixed := 0
	var ratios float64
	for i, c := range cols {
		if c.ratio > 0 {
			ratios += c.ratio
			continue
		}
		widths[i] = c.min
		if c.max > 0 && widths[i] > c.max {
			widths[i] = c.max
		}
		fixed += widths[i]
	}

	flexible := max(width-fixed-(len(cols)-1)*columnGap-leftMargin, 0)
	for i, c := range cols {
		if c.ratio == 0 {
			continue
		}
		w := int(float64(flexible) * c.ratio / ratios)
		w = max(w, c.min)
		if c.max > 0 {
			w = min(w, c.max)
		}
		widths[i] = w
	}
	return widths
}

func render(width int, cols []column, cells [][]string) string {
	if len(cells) == 0 {
		return ""
	}
	widths := fitColumns(width, cols)
	for _, row := range cells {
		for j := range row {
			if cols[j].ratio > 0 {
				row[j] = TruncateWithEllipsis(row[j], widths[j])
			}
		}
	}

	tbl := table.New().
		Border(lipgloss.Border{Middle: "─", Top: "─", Bottom: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderRow(true).
		BorderStyle(Muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle()
			if col >= len(cols) {
				return style
			}
			c := cols[col]
			if c.muted {
				style = Muted
			}
			if c.right {
				style = style.Align(lipgloss.Right)
			}
			// Width includes padding, so a padded column widens by the gap.
			if col < len(cols)-1 {
				return style.Width(widths[col] + columnGap).PaddingRight(columnGap)
			}
			return style.Width(widths[col])
		}).
		Rows(cells...)
	return tbl.Render()
}

// TruncateWithEllipsis shortens s to maxLen runes, preferring a word break.
func TruncateWithEllipsis(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	cut := string(runes[:maxLen-3])
	if i := strings.LastIndex(cut, " "); i > 0 && utf8.RuneCountInString(cut[:i]) > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// FormatRowNum right-aligns num to the width of maxNum, at least two digits.
func FormatRowNum(num, maxNum int) string {
	width := max(len(strconv.Itoa(maxNum)), 2)
	return fmt.Sprintf("%*d", width, num)
}
