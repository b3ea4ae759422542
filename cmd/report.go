package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/yukitaka/tccretro/internal/analyze"
	"github.com/yukitaka/tccretro/internal/export"
	"github.com/yukitaka/tccretro/internal/feedback"
	"github.com/yukitaka/tccretro/internal/report"
)

var (
	reportNoAI    bool
	reportModelID string
)

var reportCmd = &cobra.Command{
	Use:   "report <csv-file>",
	Short: "Build a retrospective report from an exported CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", path)
			}
			return err
		}

		req, ok := export.ParseFilename(filepath.Base(path))
		if !ok {
			return fmt.Errorf("cannot infer the date range from %q, expected tasks_YYYY-MM-DD-YYYY-MM-DD.csv",
				filepath.Base(path))
		}

		repPath, err := buildReport(cmd.Context(), path, req, !reportNoAI, resolveModel(cmd, reportModelID))
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", repPath)
		return nil
	},
}

// buildReport analyzes csvPath and writes report_<token>.md next to it,
// returning the report path.
func buildReport(ctx context.Context, csvPath string, req export.Request, useAI bool, modelID string) (string, error) {
	tasks, warnings, err := analyze.Load(csvPath)
	if err != nil {
		return "", err
	}
	summary := analyze.Summarize(tasks)

	// The profile can turn AI feedback off globally.
	if activeProfile != nil && !activeProfile.EnableAI {
		useAI = false
	}

	var text string
	var fromAI bool
	if useAI {
		gen := feedback.NewGenerator(modelID, cfg.AWSRegion, logger)
		gen.TemplatePath = cfg.PromptTemplate
		gen.DefinitionsPath = cfg.ProjectDefinitions
		text, fromAI = gen.Generate(ctx, feedback.PromptData{
			Start:     req.Start(),
			End:       req.End(),
			Summary:   summary,
			CSVSample: analyze.RelevantSample(tasks, feedback.SampleLimit),
		})
	} else {
		text = feedback.Fallback(summary)
	}

	rep := &report.Report{
		Token:          req.Token(),
		Start:          req.Start(),
		End:            req.End(),
		CSVPath:        csvPath,
		GeneratedAt:    time.Now(),
		Summary:        summary,
		Warnings:       warnings,
		Feedback:       text,
		FeedbackFromAI: fromAI,
	}
	if activeProfile != nil {
		rep.Author = activeProfile.Name
	}
	if fromAI {
		rep.ModelID = modelID
	}

	data, err := (&report.MarkdownRenderer{}).Render(rep)
	if err != nil {
		return "", err
	}
	out := filepath.Join(filepath.Dir(csvPath), report.Filename(req.Token()))
	if err := report.Write(out, data); err != nil {
		return "", err
	}
	return out, nil
}

func init() {
	reportCmd.Flags().BoolVar(&reportNoAI, "no-ai", false, "skip the Bedrock feedback section")
	reportCmd.Flags().StringVar(&reportModelID, "model-id", "", "Bedrock model for feedback (overrides config)")
	rootCmd.AddCommand(reportCmd)
}
