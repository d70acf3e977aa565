// Package report renders transfer reports for the terminal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lepinkainen/rats/internal/rating"
	"github.com/lepinkainen/rats/internal/transfer"
)

const maxDetailWidth = 60

// Options controls what Write prints.
type Options struct {
	// AllOutcomes lists every outcome instead of only the failed ones.
	AllOutcomes bool
}

// Write prints the run summary, the outcome table and per-status counts.
func Write(w io.Writer, r *transfer.Report, opts Options) error {
	if _, err := fmt.Fprintln(w, summary(r)); err != nil {
		return err
	}
	for _, warning := range warnings(r) {
		if _, err := fmt.Fprintln(w, warning); err != nil {
			return err
		}
	}

	outcomes := r.Outcomes
	if !opts.AllOutcomes {
		outcomes = r.Failed()
	}
	if len(outcomes) > 0 {
		if _, err := fmt.Fprintln(w, outcomeTable(outcomes)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, countTable(r))
	return err
}

func summary(r *transfer.Report) string {
	s := fmt.Sprintf("Run %s: %s -> %s, %d records", r.RunID, r.Source, r.Destination, len(r.Records))
	if r.Pages > 0 {
		s += fmt.Sprintf(" from %d pages", r.Pages)
	}
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d entries skipped", r.Skipped)
	}
	if d := r.Duration(); d > 0 {
		s += fmt.Sprintf(" in %s", d.Round(time.Millisecond))
	}
	return s
}

func warnings(r *transfer.Report) []string {
	var out []string
	if r.Truncated {
		msg := "WARNING: extraction stopped before the end of the listing"
		if r.ExtractErr != nil {
			msg += ": " + r.ExtractErr.Error()
		}
		out = append(out, msg)
	}
	if r.Cancelled {
		out = append(out, fmt.Sprintf("WARNING: run stopped after %d of %d records", len(r.Outcomes), len(r.Records)))
	}
	return out
}

func outcomeTable(outcomes []rating.Outcome) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Title", "Year", "Rating", "Status", "Target", "Detail"})
	for i, o := range outcomes {
		year := ""
		if o.Record.Year > 0 {
			year = strconv.Itoa(o.Record.Year)
		}
		tw.AppendRow(table.Row{i + 1, o.Record.Title, year, o.Record.Rating, string(o.Status), o.TargetID, o.Detail})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 7, WidthMax: maxDetailWidth},
	})
	return tw.Render()
}

func countTable(r *transfer.Report) string {
	counts := r.Counts()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Status", "Count"})
	for _, s := range rating.AllStatuses {
		tw.AppendRow(table.Row{string(s), counts[s]})
	}
	tw.AppendFooter(table.Row{"Total", len(r.Outcomes)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
