package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"pricehistory-extractor/adapters"
	"pricehistory-extractor/internal/database"
	"pricehistory-extractor/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func statusText(status types.Status) string {
	switch status {
	case types.StatusSuccess:
		return text.FgGreen.Sprint(string(status))
	case types.StatusPartial:
		return text.FgYellow.Sprint(string(status))
	default:
		return text.FgRed.Sprint(string(status))
	}
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// renderSummary prints one row per target of a finished run
func renderSummary(w io.Writer, summary types.RunSummary) {
	t := newTable(w)
	t.SetTitle("Run finished in %v", summary.Finished.Sub(summary.Started).Round(time.Second))
	t.AppendHeader(table.Row{"Symbol", "Status", "Pages", "Records", "Artifact", "Error"})
	for _, r := range summary.Results {
		t.AppendRow(table.Row{r.Target, statusText(r.Status), r.Pages, r.Records, r.Artifact, r.Error})
	}
	t.SetCaption("%d ok / %d partial / %d failed",
		summary.Count(types.StatusSuccess), summary.Count(types.StatusPartial), summary.Count(types.StatusFailed))
	t.Render()
}

// renderProbe prints which selectors resolved for each target
func renderProbe(w io.Writer, reports []adapters.ProbeReport) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Symbol", "Static trigger", "Static table", "Trigger", "Table", "Header", "Rows", "Page", "Next page", "Error"})
	for _, r := range reports {
		next := "absent"
		if r.NextPage.Present {
			next = fmt.Sprintf("displayed=%s enabled=%s", yesNo(r.NextPage.Displayed), yesNo(r.NextPage.Enabled))
		}
		problem := errText(r.NavigationError)
		if r.StaticErr != nil {
			problem = strings.TrimSpace(problem + " static: " + r.StaticErr.Error())
		}
		t.AppendRow(table.Row{
			r.Target,
			yesNo(r.StaticTrigger),
			yesNo(r.StaticTable),
			yesNo(r.Trigger),
			yesNo(r.Table),
			strings.Join(r.Header, ", "),
			r.FirstPageRows,
			r.CurrentPage,
			next,
			problem,
		})
	}
	t.Render()
}

// renderRuns prints recent runs with their per-target outcomes
func renderRuns(w io.Writer, runs []database.Run, outcomes []database.Outcome) {
	byRun := make(map[int64][]database.Outcome)
	for _, o := range outcomes {
		byRun[o.RunID] = append(byRun[o.RunID], o)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Started", "Finished", "Symbol", "Status", "Records", "Error"})
	for _, run := range runs {
		finished := "running"
		if !run.Finished.IsZero() {
			finished = run.Finished.Local().Format(timeLayout)
		}
		started := run.Started.Local().Format(timeLayout)

		rows := byRun[run.ID]
		if len(rows) == 0 {
			t.AppendRow(table.Row{run.ID, started, finished, strings.Join(run.Targets, ","), "", "", ""})
		}
		for _, o := range rows {
			t.AppendRow(table.Row{run.ID, started, finished, o.Target, statusText(o.Status), o.Records, o.Error})
		}
		t.AppendSeparator()
	}
	t.Render()
}

// renderOutcomes prints one symbol's outcomes across runs. last is the
// most recent successful outcome, which may be older than every listed row.
func renderOutcomes(w io.Writer, outcomes []database.Outcome, last *database.Outcome) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Run", "Finished", "Status", "Pages", "Records", "Artifact", "Error"})
	for _, o := range outcomes {
		t.AppendRow(table.Row{o.RunID, o.Finished.Local().Format(timeLayout), statusText(o.Status), o.Pages, o.Records, o.Artifact, o.Error})
	}
	if last == nil {
		t.SetCaption("last successful fetch: never")
	} else {
		t.SetCaption("last successful fetch: %s (run %d, %d records)", last.Finished.Local().Format(timeLayout), last.RunID, last.Records)
	}
	t.Render()
}
