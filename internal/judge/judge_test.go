package judge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/model"
)

func TestStubAlwaysPasses(t *testing.T) {
	t.Parallel()

	v, err := Stub{}.Evaluate(context.Background(), model.Answer{}, model.Golden{})
	require.NoError(t, err)
	assert.False(t, v.Used)
	assert.True(t, v.Pass)
	assert.Equal(t, []string{"stub_disabled"}, v.Reasons)
}

func TestForConfigDisabledReturnsStub(t *testing.T) {
	t.Parallel()

	j, err := ForConfig(config.JudgeConfig{EnabledForW2: false}, "")
	require.NoError(t, err)
	assert.IsType(t, Stub{}, j)

	// Enabled but no model name still falls back to the stub.
	j, err = ForConfig(config.JudgeConfig{EnabledForW2: true}, "")
	require.NoError(t, err)
	assert.IsType(t, Stub{}, j)
}

func TestForConfigEnabledNeedsPrompt(t *testing.T) {
	_, err := ForConfig(config.JudgeConfig{EnabledForW2: true, ModelName: "claude-haiku-4-5-20251001"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt")
}

func TestForConfigEnabledWithPrompt(t *testing.T) {
	dir := t.TempDir()
	promptDir := filepath.Join(dir, "change_impact")
	require.NoError(t, os.MkdirAll(promptDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(promptDir, "prompt.md"),
		[]byte(`Respond with {"pass": true, "checks": []}`),
		0o644,
	))

	j, err := ForConfig(config.JudgeConfig{EnabledForW2: true, ModelName: "claude-haiku-4-5-20251001", MaxTokens: 512}, dir)
	require.NoError(t, err)
	assert.IsType(t, &Claude{}, j)
}

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		wantPass bool
		wantErr  bool
	}{
		{"bare json", `{"pass": true, "checks": ["anchor cited"]}`, true, false},
		{"json with prose", "Here is my verdict:\n{\"pass\": false, \"checks\": [\"missing anchor\"]}\nDone.", false, false},
		{"no json", "I cannot decide.", false, true},
		{"malformed json", `{"pass": }`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseVerdict(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, v.Used)
			assert.Equal(t, tt.wantPass, v.Pass)
		})
	}
}
