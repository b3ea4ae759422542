package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/analyze"
	"github.com/yukitaka/tccretro/internal/report"
	"github.com/yukitaka/tccretro/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view <report-file>",
	Short: "View a retrospective report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		var parser report.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			parser = &report.JSONParser{}
		default:
			parser = &report.MarkdownParser{}
		}

		rep, err := parser.Parse(data)
		if err != nil {
			return err
		}

		if plainOutput {
			printReport(cmd, rep)
			return nil
		}
		return tui.Run(rep, path)
	},
}

// printReport writes a plain-text rendition to stdout.
func printReport(cmd *cobra.Command, rep *report.Report) {
	cmd.Println("## Summary")
	cmd.Printf("  Period:    %s 〜 %s\n", rep.Start.Format("2006-01-02"), rep.End.Format("2006-01-02"))
	cmd.Printf("  Tasks:     %d\n", rep.Summary.TaskCount)
	cmd.Printf("  Hours:     %.2f\n", rep.Summary.Routines.TotalHours)
	if rep.Author != "" {
		cmd.Printf("  Author:    %s\n", rep.Author)
	}
	cmd.Printf("  Generated: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	cmd.Println()

	section := func(title string, hours map[string]float64, total float64) {
		cmd.Println("## " + title)
		if len(hours) == 0 {
			cmd.Println("  (none)")
		} else {
			for _, name := range analyze.RankedKeys(hours) {
				share := 0.0
				if total > 0 {
					share = hours[name] / total * 100
				}
				cmd.Printf("  %7.2f h  %5.1f%%  %s\n", hours[name], share, name)
			}
		}
		cmd.Println()
	}
	section("Projects", rep.Summary.Projects.HoursByProject, rep.Summary.Projects.TotalHours)
	section("Modes", rep.Summary.Modes.HoursByMode, rep.Summary.Modes.TotalHours)

	cmd.Println("## Routine")
	rt := rep.Summary.Routines
	cmd.Printf("  Routine:     %.2f h (%.1f%%)\n", rt.RoutineHours, rt.RoutinePercentage)
	cmd.Printf("  Non-routine: %.2f h (%.1f%%)\n", rt.NonRoutineHours, rt.NonRoutinePercentage)
	cmd.Println()

	cmd.Println("## Feedback")
	if rep.Feedback == "" {
		cmd.Println("  (none)")
	} else {
		for _, line := range strings.Split(strings.TrimRight(rep.Feedback, "\n"), "\n") {
			cmd.Println("  " + line)
		}
	}
	cmd.Println()

	if len(rep.Warnings) > 0 {
		cmd.Println("## Warnings")
		for _, w := range rep.Warnings {
			cmd.Println("  " + w)
		}
		cmd.Println()
	}
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
