package feedback

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	holidayjp "github.com/holiday-jp/holiday_jp-go"

	"github.com/yukitaka/tccretro/internal/analyze"
)

// SampleLimit caps how many task rows are embedded in the prompt.
const SampleLimit = 1000

// Placeholders the template may use.
const (
	phDateInfo    = "{date_info_section}"
	phDefinitions = "{project_definitions_section}"
	phProjectData = "{project_data}"
	phModeData    = "{mode_data}"
	phRoutineData = "{routine_data}"
	phCSVSample   = "{csv_sample_section}"
)

// defaultTemplate is used when no custom template file is configured.
const defaultTemplate = `あなたは時間管理コーチです。以下はTaskChute Cloudからエクスポートした作業ログの集計です。

{date_info_section}

{project_definitions_section}

## プロジェクト別集計
{project_data}

## モード別集計
{mode_data}

## ルーチン集計
{routine_data}

{csv_sample_section}

上記を踏まえ、この期間の振り返りフィードバックを日本語で書いてください。以下の観点を含めてください。

- 良かった点
- 改善できる点
- 次の期間に試すとよい具体的な行動
`

var weekdayJP = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// PromptData carries everything the template can reference.
type PromptData struct {
	Start       time.Time
	End         time.Time
	Summary     analyze.Summary
	CSVSample   string
	Definitions *Definitions
}

// BuildPrompt substitutes data into the template. Unknown placeholders are
// left untouched so template mistakes stay visible.
func BuildPrompt(template string, data PromptData) (string, error) {
	projectData, err := json.MarshalIndent(data.Summary.Projects, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode project summary: %w", err)
	}
	modeData, err := json.MarshalIndent(data.Summary.Modes, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode mode summary: %w", err)
	}
	routineData, err := json.MarshalIndent(data.Summary.Routines, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode routine summary: %w", err)
	}

	r := strings.NewReplacer(
		phDateInfo, DateInfoSection(data.Start, data.End),
		phDefinitions, data.Definitions.Section(),
		phProjectData, string(projectData),
		phModeData, string(modeData),
		phRoutineData, string(routineData),
		phCSVSample, sampleSection(data.CSVSample),
	)
	return r.Replace(template), nil
}

// DefaultTemplate returns the built-in prompt template.
func DefaultTemplate() string {
	return defaultTemplate
}

// DateInfoSection lists every day in the range with its weekday and whether
// it is a weekend or a Japanese public holiday, so the model can weigh
// workdays and rest days differently.
func DateInfoSection(start, end time.Time) string {
	if end.Before(start) {
		start, end = end, start
	}

	var sb strings.Builder
	days := int(end.Sub(start).Hours()/24) + 1
	sb.WriteString(fmt.Sprintf("## 対象期間\n%s 〜 %s（%d日間）\n",
		start.Format(time.DateOnly), end.Format(time.DateOnly), days))

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		sb.WriteString(fmt.Sprintf("- %s（%s）: %s\n",
			d.Format(time.DateOnly), weekdayJP[d.Weekday()], dayKind(d)))
	}
	return sb.String()
}

func dayKind(d time.Time) string {
	if holidayjp.IsHoliday(d) {
		if h, err := holidayjp.HolidayName(d); err == nil {
			return "祝日（" + h + "）"
		}
		return "祝日"
	}
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "週末"
	}
	return "平日"
}

func sampleSection(sample string) string {
	if sample == "" {
		return ""
	}
	if !strings.HasSuffix(sample, "\n") {
		sample += "\n"
	}
	return fmt.Sprintf("## タスクサンプル（最大%d件）\n```csv\n%s```\n", SampleLimit, sample)
}
