package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"repoknow/internal/checkpoint"
	"repoknow/internal/pipeline"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	return tbl
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func stepProgress(s checkpoint.StepSummary) string {
	switch {
	case s.Total > 0:
		return fmt.Sprintf("%d/%d", s.Saved, s.Total)
	case s.Items > 0:
		return humanize.Comma(int64(s.Items)) + " items"
	default:
		return ""
	}
}

func writeSteps(w io.Writer, steps []checkpoint.StepSummary) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Step", "Done", "Progress"})
	for _, s := range steps {
		done := subtleStyle.Render("·")
		if s.Completed {
			done = successStyle.Render("✓")
		}
		tbl.AppendRow(table.Row{s.Name, done, stepProgress(s)})
	}
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignCenter}})
	tbl.Render()
}

func writeErrors(w io.Writer, entries []checkpoint.ErrorEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("%d recorded errors", len(entries))))
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"When", "Step", "Error"})
	for _, e := range entries {
		tbl.AppendRow(table.Row{humanize.Time(e.Timestamp), e.Step, e.Message})
	}
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	tbl.Render()
}

func writeResult(w io.Writer, res *pipeline.Result) {
	status := statusStyle(res.Status).Render(string(res.Status))
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Analysis"), status)
	fmt.Fprintf(w, "%s %s\n", subtleStyle.Render("checkpoint:"), res.CheckpointID)
	if res.RepositoryID != "" {
		fmt.Fprintf(w, "%s %s  %s %s\n",
			subtleStyle.Render("repository:"), res.RepositoryID,
			subtleStyle.Render("project:"), res.ProjectID)
	}
	switch {
	case res.FromCache:
		fmt.Fprintln(w, subtleStyle.Render("Unchanged since the last saved analysis; nothing was written."))
	case res.Resumed:
		fmt.Fprintln(w, subtleStyle.Render("Resumed from the checkpoint."))
	}
	fmt.Fprintln(w)

	writeSteps(w, res.Steps)
	fmt.Fprintf(w, "%s saved\n", humanize.Comma(int64(len(res.Saved))))

	if len(res.Unsaved) > 0 {
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("%d unsaved", len(res.Unsaved))))
		tbl := newTable(w)
		tbl.AppendHeader(table.Row{"Step", "Item", "Error"})
		for _, u := range res.Unsaved {
			tbl.AppendRow(table.Row{u.Step, u.Name, u.Error})
		}
		tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
		tbl.Render()
	}
}

func writeCheckpoints(w io.Writer, list []pipeline.CheckpointSummary) {
	if len(list) == 0 {
		fmt.Fprintln(w, subtleStyle.Render("No checkpoints."))
		return
	}
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"ID", "Path", "Status", "Steps", "Errors", "Updated"})
	for _, c := range list {
		tbl.AppendRow(table.Row{
			shortID(c.CheckpointID),
			c.ProjectPath,
			statusStyle(c.Status).Render(string(c.Status)),
			fmt.Sprintf("%d/%d", c.CompletedSteps, c.TotalSteps),
			c.Errors,
			humanize.Time(c.LastUpdated),
		})
	}
	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", len(list))})
	tbl.Render()
}

func writeProgress(w io.Writer, report *pipeline.ProgressReport) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Checkpoint"), report.CheckpointID)
	fmt.Fprintf(w, "%s %s\n", subtleStyle.Render("path:"), report.ProjectPath)
	fmt.Fprintf(w, "%s %s\n", subtleStyle.Render("status:"), statusStyle(report.Status).Render(string(report.Status)))
	if report.CurrentStep != "" {
		fmt.Fprintf(w, "%s %s\n", subtleStyle.Render("current step:"), report.CurrentStep)
	}
	var remote []string
	if report.Remote.RepositoryID != "" {
		remote = append(remote, "repository "+report.Remote.RepositoryID)
	}
	if report.Remote.ProjectID != "" {
		remote = append(remote, "project "+report.Remote.ProjectID)
	}
	if len(remote) > 0 {
		fmt.Fprintf(w, "%s %s\n", subtleStyle.Render("remote:"), strings.Join(remote, ", "))
	}
	fmt.Fprintf(w, "%s %s\n\n", subtleStyle.Render("updated:"), humanize.Time(report.LastUpdated))

	writeSteps(w, report.Steps)
	writeErrors(w, report.Errors)
}
