package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/auth"
	"github.com/yukitaka/tccretro/internal/export"
)

var (
	exportDate    string
	exportStart   string
	exportEnd     string
	exportForce   bool
	exportReport  bool
	exportNoAI    bool
	exportModelID string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time logs for a date range as CSV (yesterday by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := resolveRange()
		if err != nil {
			return err
		}

		outputDir := cfg.OutputDir
		if outputDir == "" {
			outputDir = "."
		}

		// Work out which days still need exporting. Days covered by any
		// earlier export are skipped unless --force.
		days := req.Days()
		if !exportForce {
			have, missing := export.MissingDays(outputDir, req)
			if len(missing) == 0 {
				fmt.Printf("All %d day(s) of %s already exported, nothing to do.\n", len(days), req)
				return reportExisting(cmd, outputDir, req)
			}
			if len(have) > 0 {
				fmt.Printf("Skipping %d already-exported day(s).\n", len(have))
			}
			days = missing
		}
		groups := export.GroupConsecutive(days)

		acq := newAcquirer(false)
		defer acq.Close()

		if err := acq.EnsureAuthenticated(cmd.Context(), loginTimeout()); err != nil {
			var lte *auth.LoginTimeoutError
			if errors.As(err, &lte) {
				return fmt.Errorf("no login detected within %s, run 'tccretro login' and retry", lte.Timeout)
			}
			return err
		}

		exported := make([]export.Request, 0, len(groups))
		for _, g := range groups {
			res, err := acq.Export(cmd.Context(), g, outputDir)
			if err != nil {
				return fmt.Errorf("export %s: %w", g, err)
			}
			fmt.Printf("✓ %s (%s in %s)\n", res.Path, humanSize(res.Size), res.Elapsed.Round(time.Millisecond))
			exported = append(exported, g)
		}

		if exportReport {
			for _, g := range exported {
				repPath, err := buildReport(cmd.Context(),
					filepath.Join(outputDir, g.Filename()), g, !exportNoAI, resolveModel(cmd, exportModelID))
				if err != nil {
					return fmt.Errorf("report for %s: %w", g, err)
				}
				fmt.Printf("✓ %s\n", repPath)
			}
		}
		return nil
	},
}

// reportExisting covers the --report case when every day was already
// exported: report the exact range file if it exists, otherwise bail with a
// hint since the days are spread over other export files.
func reportExisting(cmd *cobra.Command, outputDir string, req export.Request) error {
	if !exportReport {
		return nil
	}
	path := filepath.Join(outputDir, req.Filename())
	if _, err := os.Stat(path); err != nil {
		fmt.Printf("No single file covers %s, run 'tccretro report <file>' on one of the existing exports.\n", req)
		return nil
	}
	repPath, err := buildReport(cmd.Context(), path, req, !exportNoAI, resolveModel(cmd, exportModelID))
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s\n", repPath)
	return nil
}

// resolveRange turns the date flags into a request. With no flags the range
// is yesterday; a lone --start-date runs through yesterday; a lone
// --end-date is that single day.
func resolveRange() (export.Request, error) {
	yesterday := export.Day(time.Now().AddDate(0, 0, -1))

	if exportDate != "" {
		if exportStart != "" || exportEnd != "" {
			return export.Request{}, errors.New("--date cannot be combined with --start-date/--end-date")
		}
		d, err := parseDay(exportDate)
		if err != nil {
			return export.Request{}, err
		}
		return export.SingleDay(d), nil
	}

	if exportStart == "" && exportEnd == "" {
		return export.SingleDay(yesterday), nil
	}

	start, end := yesterday, yesterday
	var err error
	if exportStart != "" {
		if start, err = parseDay(exportStart); err != nil {
			return export.Request{}, err
		}
	}
	if exportEnd != "" {
		if end, err = parseDay(exportEnd); err != nil {
			return export.Request{}, err
		}
	}
	if exportStart == "" {
		start = end
	}
	return export.NewRequest(start, end)
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", s)
	}
	return t, nil
}

// resolveModel prefers an explicit --model-id over config and profile.
func resolveModel(cmd *cobra.Command, flagVal string) string {
	if cmd.Flags().Changed("model-id") {
		return flagVal
	}
	return cfg.ModelID
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportDate, "date", "", "single day to export (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportStart, "start-date", "", "first day of the range (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEnd, "end-date", "", "last day of the range (YYYY-MM-DD, defaults to yesterday)")
	exportCmd.Flags().BoolVar(&exportForce, "force", false, "re-export days that already have a CSV")
	exportCmd.Flags().BoolVar(&exportReport, "report", false, "generate a retrospective report after exporting")
	exportCmd.Flags().BoolVar(&exportNoAI, "no-ai", false, "skip the Bedrock feedback in generated reports")
	exportCmd.Flags().StringVar(&exportModelID, "model-id", "", "Bedrock model for report feedback (overrides config)")
	rootCmd.AddCommand(exportCmd)
}
