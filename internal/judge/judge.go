// Package judge is the optional LLM gate for the change-impact
// workflow. When disabled in configuration the judge is a
// deterministic pass-through; the scoring core stays authoritative
// either way.
package judge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/model"
)

// Verdict is the judge's output for one task.
type Verdict struct {
	Used    bool     `json:"used"`
	Pass    bool     `json:"pass"`
	Reasons []string `json:"reasons,omitempty"`
}

// Judge evaluates one change-impact answer against its golden
// checklist.
type Judge interface {
	Evaluate(ctx context.Context, ans model.Answer, golden model.Golden) (Verdict, error)
}

// Stub is the disabled-judge pass-through: it always passes with a
// reason making the stub visible in the row data.
type Stub struct{}

// Evaluate reports an unconditional pass.
func (Stub) Evaluate(context.Context, model.Answer, model.Golden) (Verdict, error) {
	return Verdict{Used: false, Pass: true, Reasons: []string{"stub_disabled"}}, nil
}

// Claude judges via the Anthropic Messages API using the prompt file
// from the judges directory.
type Claude struct {
	client sdk.Client
	cfg    config.JudgeConfig
	prompt string
}

// NewClaude loads the change-impact prompt from judgesDir and builds a
// Claude judge. The API key comes from ANTHROPIC_API_KEY.
func NewClaude(cfg config.JudgeConfig, judgesDir string) (*Claude, error) {
	promptPath := filepath.Join(judgesDir, "change_impact", "prompt.md")
	prompt, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, eris.Wrapf(err, "judge: read prompt %s", promptPath)
	}
	return &Claude{
		client: sdk.NewClient(option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY"))),
		cfg:    cfg,
		prompt: string(prompt),
	}, nil
}

// Evaluate asks the model for a {"pass": bool, "checks": [...]} verdict
// over the answer and the golden checklist.
func (j *Claude) Evaluate(ctx context.Context, ans model.Answer, golden model.Golden) (Verdict, error) {
	payload, err := json.Marshal(map[string]any{
		"rationale": ans.Rationale,
		"paths":     ans.Paths,
		"quotes":    ans.Quotes,
		"checklist": golden.Checklist,
	})
	if err != nil {
		return Verdict{}, eris.Wrap(err, "judge: marshal payload")
	}

	msg, err := j.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(j.cfg.ModelName),
		MaxTokens:   int64(j.cfg.MaxTokens),
		Temperature: sdk.Float(j.cfg.Temperature),
		System:      []sdk.TextBlockParam{{Text: j.prompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return Verdict{}, eris.Wrap(err, "judge: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	verdict, err := parseVerdict(text.String())
	if err != nil {
		return Verdict{}, err
	}

	zap.L().Debug("judge: verdict",
		zap.Bool("pass", verdict.Pass),
		zap.Strings("reasons", verdict.Reasons),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return verdict, nil
}

// parseVerdict extracts the JSON verdict from model output, tolerating
// surrounding prose by locating the outermost object.
func parseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Verdict{}, eris.Errorf("judge: no JSON verdict in output: %.80q", text)
	}

	var raw struct {
		Pass   bool     `json:"pass"`
		Checks []string `json:"checks"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Verdict{}, eris.Wrap(err, "judge: parse verdict")
	}
	return Verdict{Used: true, Pass: raw.Pass, Reasons: raw.Checks}, nil
}

// ForConfig returns the judge matching the configuration: Claude when
// enabled with a model name, the deterministic stub otherwise.
func ForConfig(cfg config.JudgeConfig, judgesDir string) (Judge, error) {
	if !cfg.EnabledForW2 || cfg.ModelName == "" {
		return Stub{}, nil
	}
	return NewClaude(cfg, judgesDir)
}
