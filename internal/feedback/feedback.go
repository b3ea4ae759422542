package feedback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"

	"github.com/yukitaka/tccretro/internal/analyze"
)

// Defaults for the Bedrock call.
const (
	DefaultModelID     = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion      = "us-east-1"
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
)

// Converser asks a model for feedback given a finished prompt. It exists so
// tests can avoid real AWS calls.
type Converser func(ctx context.Context, region, modelID, prompt string) (string, error)

// Generator produces the written-feedback section of a report.
type Generator struct {
	ModelID         string
	Region          string
	TemplatePath    string // empty means the built-in template
	DefinitionsPath string
	Log             zerolog.Logger

	converse Converser
}

// NewGenerator returns a Generator that talks to AWS Bedrock.
func NewGenerator(modelID, region string, log zerolog.Logger) *Generator {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if region == "" {
		region = DefaultRegion
	}
	return &Generator{
		ModelID:  modelID,
		Region:   region,
		Log:      log,
		converse: bedrockConverse,
	}
}

// Generate builds the prompt and asks the model. It never fails the report:
// when the model cannot be reached the aggregate fallback text is returned
// and fromAI is false.
func (g *Generator) Generate(ctx context.Context, data PromptData) (text string, fromAI bool) {
	prompt, err := g.buildPrompt(data)
	if err != nil {
		g.Log.Warn().Err(err).Msg("could not build feedback prompt, using fallback")
		return Fallback(data.Summary), false
	}

	converse := g.converse
	if converse == nil {
		converse = bedrockConverse
	}
	reply, err := converse(ctx, g.Region, g.ModelID, prompt)
	if err != nil {
		g.Log.Warn().Err(err).Str("model", g.ModelID).Msg("feedback generation failed, using fallback")
		return Fallback(data.Summary), false
	}

	g.Log.Info().Str("model", g.ModelID).Int("chars", len(reply)).Msg("feedback generated")
	return strings.TrimSpace(reply), true
}

func (g *Generator) buildPrompt(data PromptData) (string, error) {
	template := DefaultTemplate()
	if g.TemplatePath != "" {
		raw, err := os.ReadFile(g.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("read prompt template: %w", err)
		}
		template = string(raw)
	}

	if data.Definitions == nil && g.DefinitionsPath != "" {
		defs, err := LoadDefinitions(g.DefinitionsPath)
		if err != nil {
			return "", err
		}
		data.Definitions = defs
	}
	return BuildPrompt(template, data)
}

// Fallback renders the aggregates as plain text for reports generated
// without a model.
func Fallback(s analyze.Summary) string {
	var sb strings.Builder
	sb.WriteString("AIフィードバックは利用できなかったため、集計値のみ表示します。\n\n")
	sb.WriteString(fmt.Sprintf("- 合計作業時間: %.2f時間（%dタスク）\n", s.Routines.TotalHours, s.TaskCount))
	sb.WriteString(fmt.Sprintf("- プロジェクト数: %d（最長: %s %.2f時間）\n",
		s.Projects.TotalProjects, s.Projects.TopProject, s.Projects.TopProjectHours))
	sb.WriteString(fmt.Sprintf("- モード数: %d（最長: %s %.2f時間）\n",
		s.Modes.TotalModes, s.Modes.TopMode, s.Modes.TopModeHours))
	sb.WriteString(fmt.Sprintf("- ルーチン比率: %.1f%%（ルーチン %.2f時間 / 非ルーチン %.2f時間）\n",
		s.Routines.RoutinePercentage, s.Routines.RoutineHours, s.Routines.NonRoutineHours))
	return sb.String()
}

func bedrockConverse(ctx context.Context, region, modelID, prompt string) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := bedrockruntime.NewFromConfig(cfg)
	out, err := client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []types.Message{{
			Role: types.ConversationRoleUser,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: prompt},
			},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(defaultMaxTokens),
			Temperature: aws.Float32(defaultTemperature),
		},
	})
	if err != nil {
		return "", fmt.Errorf("converse: %w", err)
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("unexpected output shape from model")
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(t.Value)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}
