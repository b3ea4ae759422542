// Package feedback builds the retrospective prompt from the analysis
// aggregates and asks an AWS Bedrock model for written feedback, falling
// back to a plain aggregate summary when the model is unreachable.
package feedback

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectDefinition describes what a project is about, so the model can
// judge time allocation instead of guessing from names.
type ProjectDefinition struct {
	Description string `yaml:"description"`
}

// Definitions is the optional project-definitions file:
//
//	projects:
//	  開発:
//	    description: プロダクト開発の作業全般
type Definitions struct {
	Projects map[string]ProjectDefinition `yaml:"projects"`
}

// LoadDefinitions reads the YAML definitions at path. A missing file is not
// an error; the prompt simply omits the section.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Definitions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project definitions: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse project definitions %s: %w", path, err)
	}
	return &defs, nil
}

// Section renders the definitions as a prompt section, or "" when empty.
func (d *Definitions) Section() string {
	if d == nil || len(d.Projects) == 0 {
		return ""
	}

	names := make([]string, 0, len(d.Projects))
	for name := range d.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("## プロジェクト定義\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", name, d.Projects[name].Description))
	}
	return sb.String()
}
