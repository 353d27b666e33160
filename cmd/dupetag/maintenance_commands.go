package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupetag/internal/annotate"
	"dupetag/internal/catalog"
	"dupetag/internal/config"
	"dupetag/internal/workflow"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Strip decision prefixes from titles and detach managed tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *workflow.Runner) error {
				summary, err := runner.Clean(cmd.Context())
				if err != nil {
					return err
				}
				printCleanup(cmd.OutOrStdout(), summary, false)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Clean annotations and delete the keep, remove, unknown and reason tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *workflow.Runner) error {
				summary, err := runner.Teardown(cmd.Context())
				if err != nil {
					return err
				}
				printCleanup(cmd.OutOrStdout(), summary, true)
				return nil
			})
		},
	}
}

func printCleanup(out io.Writer, s annotate.CleanupSummary, teardown bool) {
	fields := []field{
		{"titles cleaned", strconv.Itoa(s.TitlesCleaned)},
		{"tags detached", strconv.Itoa(s.TagsDetached)},
		{"scenes untagged", strconv.Itoa(s.ScenesUntagged)},
	}
	if teardown {
		fields = append(fields, field{"tags destroyed", strconv.Itoa(s.TagsDestroyed)})
	}
	writeFields(out, fields)
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "split",
		Short: "Move files sharing an oshash out of multi-file scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(runner *workflow.Runner) error {
				summary, err := runner.Split(cmd.Context())
				if err != nil {
					return err
				}
				writeFields(cmd.OutOrStdout(), []field{
					{"fingerprints", strconv.Itoa(summary.Fingerprints)},
					{"scenes checked", strconv.Itoa(summary.ScenesChecked)},
					{"scenes created", strconv.Itoa(summary.ScenesCreated)},
					{"failed", strconv.Itoa(summary.Failed)},
				})
				return nil
			})
		},
	}
}

func newWhichCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "which <path>",
		Short: "Show the scene that owns a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return ctx.withRunner(func(runner *workflow.Runner) error {
				scenes, err := runner.SceneForPath(cmd.Context(), path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(scenes) == 0 {
					return fmt.Errorf("no scene found for %s", path)
				}
				printScenes(out, scenes)
				return nil
			})
		},
	}
}

func printScenes(out io.Writer, scenes []catalog.RawScene) {
	rows := make([][]string, 0, len(scenes))
	for _, s := range scenes {
		for _, f := range s.Files {
			size := "-"
			if n, err := f.Size.Int64(); err == nil && n >= 0 {
				size = humanize.IBytes(uint64(n))
			}
			rows = append(rows, []string{s.ID, s.Title, f.Path, size})
		}
	}
	writeRows(out, []string{"Scene", "Title", "Path", "Size"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight})
}
