package analyze

import (
	"math"
	"sort"
	"time"
)

// Labels for rows with no project or mode assigned.
const (
	NoProject = "（プロジェクトなし）"
	NoMode    = "（モードなし）"
)

// ProjectSummary aggregates actual hours per project. Field names mirror the
// JSON payload embedded in the feedback prompt.
type ProjectSummary struct {
	TotalProjects   int                `json:"total_projects"`
	TotalHours      float64            `json:"total_hours"`
	TopProject      string             `json:"top_project"`
	TopProjectHours float64            `json:"top_project_hours"`
	HoursByProject  map[string]float64 `json:"hours_by_project"`
}

// ModeSummary aggregates actual hours per mode.
type ModeSummary struct {
	TotalModes   int                `json:"total_modes"`
	TotalHours   float64            `json:"total_hours"`
	TopMode      string             `json:"top_mode"`
	TopModeHours float64            `json:"top_mode_hours"`
	HoursByMode  map[string]float64 `json:"hours_by_mode"`
}

// RoutineSummary splits actual hours between routine and one-off tasks.
type RoutineSummary struct {
	TotalHours           float64 `json:"total_hours"`
	RoutineHours         float64 `json:"routine_hours"`
	RoutinePercentage    float64 `json:"routine_percentage"`
	NonRoutineHours      float64 `json:"non_routine_hours"`
	NonRoutinePercentage float64 `json:"non_routine_percentage"`
}

// Summary bundles the three views over one export.
type Summary struct {
	TaskCount int            `json:"task_count"`
	Projects  ProjectSummary `json:"projects"`
	Modes     ModeSummary    `json:"modes"`
	Routines  RoutineSummary `json:"routines"`
}

// Summarize computes all three aggregates from parsed tasks. Hours are
// rounded to two decimals, percentages to one.
func Summarize(tasks []Task) Summary {
	byProject := map[string]time.Duration{}
	byMode := map[string]time.Duration{}
	var total, routine time.Duration

	for _, t := range tasks {
		project := t.Project
		if project == "" {
			project = NoProject
		}
		mode := t.Mode
		if mode == "" {
			mode = NoMode
		}
		byProject[project] += t.Actual
		byMode[mode] += t.Actual
		total += t.Actual
		if t.Routine != "" {
			routine += t.Actual
		}
	}

	projects := ProjectSummary{
		TotalProjects:  len(byProject),
		TotalHours:     roundHours(total),
		HoursByProject: hoursMap(byProject),
	}
	projects.TopProject, projects.TopProjectHours = top(byProject)

	modes := ModeSummary{
		TotalModes:  len(byMode),
		TotalHours:  roundHours(total),
		HoursByMode: hoursMap(byMode),
	}
	modes.TopMode, modes.TopModeHours = top(byMode)

	nonRoutine := total - routine
	routines := RoutineSummary{
		TotalHours:           roundHours(total),
		RoutineHours:         roundHours(routine),
		NonRoutineHours:      roundHours(nonRoutine),
		RoutinePercentage:    percentage(routine, total),
		NonRoutinePercentage: percentage(nonRoutine, total),
	}

	return Summary{
		TaskCount: len(tasks),
		Projects:  projects,
		Modes:     modes,
		Routines:  routines,
	}
}

// RankedKeys returns the map's keys ordered by hours descending, ties broken
// by name so output is stable.
func RankedKeys(hours map[string]float64) []string {
	keys := make([]string, 0, len(hours))
	for k := range hours {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if hours[keys[i]] != hours[keys[j]] {
			return hours[keys[i]] > hours[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func top(m map[string]time.Duration) (string, float64) {
	var name string
	var best time.Duration
	for k, v := range m {
		if v > best || (v == best && (name == "" || k < name)) {
			name, best = k, v
		}
	}
	if name == "" {
		return "", 0
	}
	return name, roundHours(best)
}

func hoursMap(m map[string]time.Duration) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = roundHours(v)
	}
	return out
}

func roundHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

func percentage(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
