package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"dhan-trader/internal/models"
	"dhan-trader/pkg/utils"
)

// Terminal styles.
const (
	styleReset  = "\033[0m"
	styleRed    = "\033[31m"
	styleGreen  = "\033[32m"
	styleYellow = "\033[33m"
	styleCyan   = "\033[36m"
	styleBold   = "\033[1m"
	styleDim    = "\033[2m"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// Output writes command results either as styled text or, with --json, as
// indented JSON.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output bound to the command's stdout. Styling is
// only applied when stdout is a terminal and --no-color is unset.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	w := cmd.OutOrStdout()
	return &Output{
		writer:       w,
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && !noColor && isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether --json was given.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) { o.line(styleGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{})   { o.line(styleRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(styleYellow, format, args...) }
func (o *Output) Info(format string, args ...interface{})    { o.line(styleCyan, format, args...) }
func (o *Output) Bold(format string, args ...interface{})    { o.line(styleBold, format, args...) }
func (o *Output) Dim(format string, args ...interface{})     { o.line(styleDim, format, args...) }

func (o *Output) line(style, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(style, fmt.Sprintf(format, args...)))
}

// paint wraps text in style when styling is enabled.
func (o *Output) paint(style, text string) string {
	if !o.colorEnabled || text == "" {
		return text
	}
	return style + text + styleReset
}

func (o *Output) Green(text string) string  { return o.paint(styleGreen, text) }
func (o *Output) Red(text string) string    { return o.paint(styleRed, text) }
func (o *Output) Yellow(text string) string { return o.paint(styleYellow, text) }

// FormatPnL renders a signed rupee amount, green for gains and red for losses.
func (o *Output) FormatPnL(pnl float64) string {
	text := utils.FormatPnL(pnl)
	switch {
	case pnl > 0:
		return o.Green(text)
	case pnl < 0:
		return o.Red(text)
	}
	return text
}

// Side colors an order side.
func (o *Output) Side(side models.OrderSide) string {
	if side == models.OrderSideSell {
		return o.Red(string(side))
	}
	return o.Green(string(side))
}

// Status colors an order status by whether it is still live.
func (o *Output) Status(order models.Order) string {
	status := order.CanonicalStatus()
	switch {
	case order.IsOpen():
		return o.Yellow(status)
	case strings.Contains(status, "REJECT"), strings.Contains(status, "CANCEL"):
		return o.Red(status)
	case strings.Contains(status, "TRADED"), strings.Contains(status, "COMPLETE"):
		return o.Green(status)
	}
	return status
}

// MarketStatus renders the equity market phase.
func (o *Output) MarketStatus(status models.MarketStatus) string {
	switch status {
	case models.MarketOpen:
		return o.Green("● OPEN")
	case models.MarketClosed:
		return o.Red("● CLOSED")
	case models.MarketPreOpen:
		return o.Yellow("● PRE-OPEN")
	case models.MarketMISSquareOffWarn:
		return o.Yellow("⚠ INTRADAY SQUARE-OFF")
	}
	return string(status)
}

// Table lays out rows in columns. Right-aligned columns hold amounts and
// quantities; a footer row is set off from the body by a rule.
type Table struct {
	out     *Output
	headers []string
	right   map[int]bool
	limits  map[int]int
	rows    [][]string
	footer  []string
}

// NewTable creates a table with the given column headers.
func NewTable(out *Output, headers ...string) *Table {
	return &Table{
		out:     out,
		headers: headers,
		right:   make(map[int]bool),
		limits:  make(map[int]int),
	}
}

// AlignRight right-aligns the given columns.
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// Truncate caps the width of column col. Styled cells are never cut.
func (t *Table) Truncate(col, width int) *Table {
	if width > 1 {
		t.limits[col] = width
	}
	return t
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, t.fit(cells))
}

// SetFooter sets the totals row.
func (t *Table) SetFooter(cells ...string) {
	t.footer = t.fit(cells)
}

func (t *Table) fit(cells []string) []string {
	row := make([]string, len(t.headers))
	for i := range row {
		if i < len(cells) {
			row[i] = truncate(cells[i], t.limits[i])
		}
	}
	return row
}

// Render writes the table. An empty header list renders nothing.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	measure := func(row []string) {
		for i, cell := range row {
			if n := displayWidth(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	if t.footer != nil {
		measure(t.footer)
	}

	header := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = t.out.paint(styleBold, h)
	}
	t.print(header, widths)
	t.rule(widths)
	for _, row := range t.rows {
		t.print(row, widths)
	}
	if t.footer != nil {
		t.rule(widths)
		t.print(t.footer, widths)
	}
}

func (t *Table) print(cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := strings.Repeat(" ", max(widths[i]-displayWidth(cell), 0))
		if t.right[i] {
			parts[i] = pad + cell
		} else {
			parts[i] = cell + pad
		}
	}
	t.out.Println(strings.TrimRight(strings.Join(parts, "  "), " "))
}

func (t *Table) rule(widths []int) {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w)
	}
	t.out.Println(t.out.paint(styleDim, strings.Join(parts, "──")))
}

func truncate(cell string, width int) string {
	if width <= 1 || ansiEscape.MatchString(cell) {
		return cell
	}
	r := []rune(cell)
	if len(r) <= width {
		return cell
	}
	return string(r[:width-1]) + "…"
}

// displayWidth counts runes with ANSI escape codes removed.
func displayWidth(s string) int {
	return len([]rune(ansiEscape.ReplaceAllString(s, "")))
}
