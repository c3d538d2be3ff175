package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/validate"
	"github.com/deixis/pkgguard/internal/workflow"
)

func formatPackagesCLI(run *workflow.Run) string {
	var b strings.Builder
	if len(run.Packages) == 0 {
		fmt.Fprintln(&b, "No packages.")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tINSTALLED\tAVAILABLE\tSOURCE")
		for _, p := range run.Packages {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, dash(p.InstalledVersion), dash(p.AvailableVersion), p.Source)
		}
		_ = tw.Flush()
	}
	writeFooter(&b, run.ID, run.Duration)
	return b.String()
}

func formatSourcesCLI(run *workflow.Run) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tARGUMENT\tTYPE\tEXPLICIT")
	for _, s := range run.Sources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", s.Name, s.Argument, dash(s.Type), s.Explicit)
	}
	_ = tw.Flush()
	writeFooter(&b, run.ID, run.Duration)
	return b.String()
}

func formatChangeCLI(run *workflow.Run) string {
	var b strings.Builder
	if run.Message != "" {
		fmt.Fprintln(&b, run.Message)
	} else {
		fmt.Fprintf(&b, "%s: ok\n", run.Operation)
	}
	writeFooter(&b, run.ID, run.Duration)
	return b.String()
}

func formatVerdictCLI(ctx validate.Context, v validate.Verdict) string {
	if v.Accepted {
		return fmt.Sprintf("ok (%s)\n", ctx)
	}
	if v.Rule != "" {
		return fmt.Sprintf("rejected (%s): %s, rule %s\n", ctx, v.Reason, v.Rule)
	}
	return fmt.Sprintf("rejected (%s): %s\n", ctx, v.Reason)
}

func formatInspectCLI(r *report.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s run at %s, exit %s, %dms\n\n",
		r.Operation, r.CreatedAt.Local().Format(time.DateTime), workflow.FormatCode(r.ExitCode), r.DurationMs)
	if r.Message != "" {
		fmt.Fprintln(&b, r.Message)
	}
	if len(r.Packages) > 0 {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tINSTALLED\tAVAILABLE\tSOURCE")
		for _, p := range r.Packages {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, dash(p.InstalledVersion), dash(p.AvailableVersion), p.Source)
		}
		_ = tw.Flush()
	}
	for _, s := range r.Sources {
		fmt.Fprintf(&b, "%s  %s\n", s.Name, s.Argument)
	}
	return b.String()
}

func writeFooter(b *strings.Builder, id string, d time.Duration) {
	fmt.Fprintf(b, "\nrun %s (%s)\n", id, d.Round(time.Millisecond))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
