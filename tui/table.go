package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	tableBorderColor = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#AAAAAA"}
	tableBorderStyle = lipgloss.NewStyle().Foreground(tableBorderColor)
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	plainCellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// RenderTable lays out rows under headers with a normal border.
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// RenderPlainTable aligns columns without borders, for output that is piped or captured.
func RenderPlainTable(headers []string, rows [][]string) string {
	t := table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			return plainCellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

func Table(w io.Writer, headers []string, rows [][]string) {
	fmt.Fprintln(w, RenderTable(headers, rows))
}

// Report prints a titled, bordered table when stdout is a terminal and a plain aligned
// table otherwise.
func Report(w io.Writer, title string, headers []string, rows [][]string) {
	if !HasTTY {
		fmt.Fprintln(w, RenderPlainTable(headers, rows))
		return
	}
	fmt.Fprintln(w, Title(title))
	Table(w, headers, rows)
}
