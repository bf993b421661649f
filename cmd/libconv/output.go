package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// column is a table heading. Numeric columns are right aligned.
type column struct {
	Title   string
	Numeric bool
}

func col(title string) column    { return column{Title: title} }
func numCol(title string) column { return column{Title: title, Numeric: true} }

// renderTable lays rows out under columns. Short rows are padded.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.Title
		align := text.AlignLeft
		if c.Numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// checkLine renders "  name: [LABEL] detail" for the preflight listing.
func checkLine(name, label, detail string, color text.Colors) string {
	line := fmt.Sprintf("  %-22s [%s]", name+":", label)
	if detail != "" {
		line += " " + detail
	}
	if color != nil {
		return color.Sprint(line)
	}
	return line
}

func heading(title string, colorize bool) string {
	title = strings.TrimSpace(title)
	line := title + "\n" + strings.Repeat("-", len(title))
	if colorize {
		return text.Colors{text.Bold}.Sprint(line)
	}
	return line
}

// isTerminal reports whether out writes to a terminal.
func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
