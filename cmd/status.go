package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/export"
	"github.com/yukitaka/tccretro/internal/schedule"
)

var statusDays int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show export coverage for the last days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if statusDays < 1 {
			statusDays = 1
		}
		end := export.Day(time.Now().AddDate(0, 0, -1))
		start := end.AddDate(0, 0, -(statusDays - 1))
		req, err := export.NewRequest(start, end)
		if err != nil {
			return err
		}

		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "."
		}
		have, missing := export.MissingDays(outputDir, req)
		reported := reportRanges(outputDir)

		covered := make(map[time.Time]bool, len(have))
		for _, d := range have {
			covered[d] = true
		}

		cmd.Printf("Export coverage, last %d day(s) in %s:\n", statusDays, outputDir)
		for _, d := range req.Days() {
			mark := "✗"
			note := "missing"
			if covered[d] {
				mark = "✓"
				note = ""
				for _, r := range reported {
					if r.Contains(d) {
						note = "report ready"
						break
					}
				}
			}
			if note != "" {
				note = "  " + note
			}
			cmd.Printf("  %s %s%s\n", mark, d.Format(time.DateOnly), note)
		}
		cmd.Printf("%d/%d day(s) exported\n", len(have), statusDays)

		if len(missing) > 0 {
			first := missing[0]
			last := missing[len(missing)-1]
			cmd.Printf("fill the gaps with: tccretro export --start-date %s --end-date %s\n",
				first.Format(time.DateOnly), last.Format(time.DateOnly))
		}

		if backend, ok := schedule.Installed(schedule.Options{}); ok {
			cmd.Printf("daily export scheduled via %s\n", backend)
		} else {
			cmd.Printf("no daily export scheduled (run 'tccretro setup')\n")
		}
		return nil
	},
}

// reportRanges lists the date ranges that already have a report in dir.
func reportRanges(dir string) []export.Request {
	var ranges []export.Request
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasPrefix(name, "report_") || !strings.HasSuffix(name, ".md") {
			continue
		}
		token := strings.TrimSuffix(strings.TrimPrefix(name, "report_"), ".md")
		if r, ok := export.ParseToken(token); ok {
			ranges = append(ranges, r)
		}
	}
	return ranges
}

func init() {
	statusCmd.Flags().IntVar(&statusDays, "days", 14, "how many days back to check")
	rootCmd.AddCommand(statusCmd)
}
