package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tuannm99/relcore/internal/catalog"
	"github.com/tuannm99/relcore/internal/sql/executor"
)

// statementComplete checks if we have a terminating ';' outside single quotes.
func statementComplete(buf string) bool {
	inQuote := false
	escaped := false

	for _, r := range buf {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '\'' {
			inQuote = !inQuote
			continue
		}
		if r == ';' && !inQuote {
			return true
		}
	}
	return false
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") ||
		line == "quit" || line == "exit"
}

var errPageUsage = errors.New("usage: \\page <id>")

// parsePageCommand reads the page id of a `\page <id>` line.
func parsePageCommand(line string) (uint32, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "\\page" {
		return 0, errPageUsage
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil || id == 0 {
		return 0, errPageUsage
	}
	return uint32(id), nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

func printResult(w io.Writer, res *executor.Result) {
	if len(res.Columns) == 0 {
		// DDL/DML
		fmt.Fprintf(w, "OK (%d affected)\n", res.AffectedRows)
		return
	}

	cols := res.Columns
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	cells := make([][]string, len(res.Rows))
	for r, row := range res.Rows {
		cells[r] = make([]string, len(cols))
		for i := range cols {
			s := "NULL"
			if i < len(row) {
				s = formatValue(row[i])
			}
			cells[r][i] = s
			widths[i] = max(widths[i], len(s))
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, padRight(values[i], widths[i]))
		}
		fmt.Fprintln(w)
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, row := range cells {
		printRow(row)
	}
	fmt.Fprintf(w, "(%d rows)\n", res.AffectedRows)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

// printCatalog lists every table with its columns, like psql's \d.
func printCatalog(w io.Writer, c *catalog.Catalog) {
	names := c.TableNames()
	if len(names) == 0 {
		fmt.Fprintln(w, "no tables")
		return
	}
	for _, name := range names {
		t, _ := c.GetTable(name)
		fmt.Fprintf(w, "table %s (origin page %d)\n", name, t.OriginPage)
		for _, cn := range t.ColumnNames() {
			col := t.Columns[cn]
			var attrs []string
			if !col.Nullable {
				attrs = append(attrs, "NOT NULL")
			}
			if col.Unique {
				attrs = append(attrs, "UNIQUE")
			}
			if col.Default != nil {
				attrs = append(attrs, "DEFAULT "+col.Default.String())
			}
			if col.References != nil {
				attrs = append(attrs, fmt.Sprintf("REFERENCES %s(%s)", col.References.Table, col.References.Column))
			}
			fmt.Fprintf(w, "  %-16s %-8s %s\n", cn, col.Type, strings.Join(attrs, " "))
		}
	}
}
