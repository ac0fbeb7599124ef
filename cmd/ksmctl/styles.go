package main

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7D56F4")
	mutedColor   = lipgloss.Color("#666666")
	successColor = lipgloss.Color("#04B575")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor).
				PaddingRight(2)

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	sharedStyle = lipgloss.NewStyle().
			Foreground(successColor)
)

// renderTable alinea las columnas al ancho de su celda más larga.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	lines := make([]string, 0, len(rows)+1)
	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = tableHeaderStyle.Width(widths[i] + 2).Render(h)
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellStyle.Width(widths[i] + 2).Render(cell)
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
