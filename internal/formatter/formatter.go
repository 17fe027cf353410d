package formatter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kyleking/sqlassist/internal/engine"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
)

const maxCellWidth = 40

// Formatter renders engine responses for the terminal
type Formatter struct {
	showSQL bool
}

// NewFormatter creates a new formatter instance. With showSQL the executed
// statement is printed above the rows.
func NewFormatter(showSQL bool) *Formatter {
	return &Formatter{showSQL: showSQL}
}

// ParseFormat validates a --format flag value
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (must be table or json)", s)
	}
}

// FormatResponse renders resp in the requested format
func (f *Formatter) FormatResponse(resp engine.Response, format OutputFormat) (string, error) {
	if format == FormatJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode response: %w", err)
		}

		return string(data), nil
	}

	return f.formatTable(resp), nil
}

func (f *Formatter) formatTable(resp engine.Response) string {
	var lines []string

	if f.showSQL && resp.SQL != "" {
		lines = append(lines, "SQL: "+resp.SQL, "")
	}

	switch {
	case resp.Message != "":
		return strings.Join(append(lines, resp.Message), "\n")
	case resp.Error != "":
		return strings.Join(append(lines, "Error: "+resp.Error), "\n")
	}

	if len(resp.Rows) == 0 {
		return strings.Join(append(lines, "No matching rows."), "\n")
	}

	cells := make([][]string, len(resp.Rows))
	widths := make([]int, len(resp.Columns))

	for i, col := range resp.Columns {
		widths[i] = utf8.RuneCountInString(col)
	}

	for r, row := range resp.Rows {
		cells[r] = make([]string, len(resp.Columns))

		for i, col := range resp.Columns {
			cell := formatValue(row[col])
			cells[r][i] = cell
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	lines = append(lines, joinRow(resp.Columns, widths))

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}

	lines = append(lines, joinRow(rule, widths))

	for _, row := range cells {
		lines = append(lines, joinRow(row, widths))
	}

	lines = append(lines, "", f.footer(resp))

	return strings.Join(lines, "\n")
}

func (f *Formatter) footer(resp engine.Response) string {
	noun := "rows"
	if len(resp.Rows) == 1 {
		noun = "row"
	}

	footer := fmt.Sprintf("%d %s", len(resp.Rows), noun)
	if resp.Truncated {
		footer += " (truncated)"
	}

	if resp.ExecutionTimeMs > 0 {
		footer += fmt.Sprintf(" in %.2fms", resp.ExecutionTimeMs)
	}

	return footer
}

func joinRow(cells []string, widths []int) string {
	padded := make([]string, len(cells))
	for i, c := range cells {
		padded[i] = c + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c))
	}

	return strings.TrimRight(strings.Join(padded, "  "), " ")
}

// formatValue renders one cell, returning "-" for NULL
func formatValue(v any) string {
	var s string

	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		s = strconv.FormatInt(val, 10)
	case bool:
		s = strconv.FormatBool(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			s = val.Format(time.DateOnly)
		} else {
			s = val.Format(time.DateTime)
		}
	default:
		s = fmt.Sprint(val)
	}

	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxCellWidth {
		s = string([]rune(s)[:maxCellWidth-3]) + "..."
	}

	return s
}
