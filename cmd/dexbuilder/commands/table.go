package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/dexbuilder/internal/report"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printRunReport renders the human-facing build summary: the outcome line,
// the run counters and, when present, the issue list. Everything here is
// additive output on stdout; slog carries the progress lines on stderr.
func printRunReport(w io.Writer, rep *report.RunReport) {
	if rep == nil {
		return
	}
	fmt.Fprintln(w, outcomeLine(rep.OutcomeT, shouldColorize(w)))

	rows := [][]string{
		{"Index entries", strconv.Itoa(rep.IndexEntries)},
		{"Parsed", strconv.Itoa(rep.ParsedEntries)},
		{"Failed", strconv.Itoa(rep.FailedEntries)},
		{"Images built", strconv.Itoa(rep.ImagesBuilt)},
		{"Images reused", strconv.Itoa(rep.ImagesReused)},
		{"Images failed", strconv.Itoa(rep.ImagesFailed)},
		{"Rendered", strconv.Itoa(rep.Rendered)},
		{"Duration", rep.End.Sub(rep.Start).Truncate(time.Millisecond).String()},
	}
	if rep.DocumentPath != "" {
		rows = append(rows, []string{"Document", rep.DocumentPath})
	}
	fmt.Fprintln(w, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(rep.Issues) == 0 {
		return
	}
	issueRows := make([][]string, 0, len(rep.Issues))
	for _, is := range rep.Issues {
		issueRows = append(issueRows, []string{
			string(is.Code), is.Stage, string(is.Severity), is.Entry, is.Message,
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Code", "Stage", "Severity", "Entry", "Message"}, issueRows, nil))
}

func outcomeLine(o report.RunOutcome, colorize bool) string {
	base := "Build " + string(o)
	if !colorize {
		return base
	}
	switch o {
	case report.OutcomeSuccess:
		return ansiGreen + base + ansiReset
	case report.OutcomeWarning:
		return ansiYellow + base + ansiReset
	default:
		return ansiRed + base + ansiReset
	}
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}
