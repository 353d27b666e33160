package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupetag/internal/catalog"
	"dupetag/internal/resolve"
	"dupetag/internal/workflow"
)

func newTagCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:       "tag [exact|high|medium]",
		Short:     "Resolve duplicate groups and annotate keep/remove decisions",
		Long:      "Fetch duplicate groups at the given perceptual hash similarity (default exact),\npick the scene to keep in each group, and write title prefixes and tags.\nEarlier annotations are cleaned first.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"exact", "high", "medium"},
		RunE: func(cmd *cobra.Command, args []string) error {
			level := ""
			if len(args) == 1 {
				level = args[0]
			}
			distance, err := catalog.ParseDistance(level)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return ctx.withRunner(func(runner *workflow.Runner) error {
				if dryRun {
					plan, err := runner.Plan(cmd.Context(), distance)
					if err != nil {
						return err
					}
					printDecisions(out, plan.Decisions)
					printSummary(out, plan.Summary)
					return nil
				}
				summary, err := runner.Tag(cmd.Context(), distance)
				if err != nil {
					return err
				}
				printSummary(out, summary)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show decisions without writing to the catalog")
	return cmd
}

func printSummary(out io.Writer, s workflow.Summary) {
	mode := "tag"
	if s.DryRun {
		mode = "dry run"
	}
	fields := []field{
		{"mode", mode},
		{"similarity", s.Distance.String()},
		{"groups", strconv.Itoa(s.Groups)},
		{"kept", strconv.Itoa(s.Kept)},
		{"unknown", strconv.Itoa(s.Unknown)},
		{"skipped", strconv.Itoa(s.Skipped)},
		{"failed", strconv.Itoa(s.Failed)},
		{"to remove", strconv.Itoa(s.RemoveCount)},
		{"reclaimable", humanize.IBytes(uint64(max(s.ReclaimableBytes, 0)))},
	}
	if !s.DryRun {
		fields = append(fields,
			field{"titles cleaned", strconv.Itoa(s.Cleanup.TitlesCleaned)},
			field{"tags detached", strconv.Itoa(s.Cleanup.TagsDetached)},
		)
	}
	fields = append(fields, field{"run id", s.RunID})
	writeFields(out, fields)
}

func printDecisions(out io.Writer, decisions []resolve.Decision) {
	if len(decisions) == 0 {
		fmt.Fprintln(out, "No duplicate groups to decide")
		return
	}
	rows := make([][]string, 0, len(decisions))
	for i, d := range decisions {
		keep := "-"
		if d.Keep != nil {
			keep = d.Keep.IDString()
		}
		reasons := "-"
		if len(d.Reasons) > 0 {
			reasons = strings.Join(d.Reasons, ",")
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			d.Outcome.String(),
			keep,
			joinIDs(d.RemoveIDs()),
			reasons,
			humanize.IBytes(uint64(max(d.ReclaimableBytes(), 0))),
		})
	}
	writeRows(out,
		[]string{"Group", "Outcome", "Keep", "Remove", "Reasons", "Reclaimable"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
