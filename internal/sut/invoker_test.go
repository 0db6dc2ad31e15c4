package sut

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/model"
)

func fakeSUT(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake SUT scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-sut.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestInvokeParsesPrediction(t *testing.T) {
	script := fakeSUT(t, `cat <<'EOF'
{"id": "T1", "answer": {"paths": ["a.c"], "line_ranges": [[10, 20]], "quotes": ["foo"]}, "citations": [{"path": "a.c", "start": 10, "end": 20}], "tokens": {"in": 100, "out": 20, "context": 500}}
EOF`)

	inv := NewInvoker(config.SUTConfig{Cmd: script, TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})

	assert.Empty(t, pred.Error)
	assert.Equal(t, []string{"a.c"}, pred.Answer.Paths)
	assert.Equal(t, []model.LineRange{{Start: 10, End: 20}}, pred.Answer.LineRanges)
	require.Len(t, pred.Citations, 1)
	assert.Equal(t, "a.c", pred.Citations[0].Path)
	assert.Equal(t, int64(100), pred.Tokens.In)
	// Self-reported latency absent: observed latency fills it in.
	assert.Greater(t, pred.Timing.LatencyMs, int64(-1))
}

func TestInvokeReceivesTaskFile(t *testing.T) {
	// The fake SUT echoes the paths from the task file it was handed.
	script := fakeSUT(t, `
task_file=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--task_file" ]; then task_file="$2"; shift; fi
  shift
done
sym=$(grep -o '"symbol":"[^"]*"' "$task_file" | tr -d '"')
printf '{"answer": {"rationale": "%s"}}' "$sym"`)

	inv := NewInvoker(config.SUTConfig{Cmd: script, TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{
		ID:     "T1",
		Inputs: model.TaskInputs{Symbol: "normalize_url"},
	})

	assert.Contains(t, pred.Answer.Rationale, "normalize_url")
}

func TestInvokeTimeout(t *testing.T) {
	script := fakeSUT(t, "sleep 5\necho '{}'")

	inv := NewInvoker(config.SUTConfig{Cmd: script, TimeoutS: 1})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})

	assert.Equal(t, ErrorTimeout, pred.Error)
	assert.Zero(t, pred.Tokens.In)
	assert.Zero(t, pred.Tokens.Out)
	assert.Nil(t, pred.Answer.Paths)
}

func TestInvokeUnparsableOutputRetained(t *testing.T) {
	script := fakeSUT(t, "echo 'not json at all'")

	inv := NewInvoker(config.SUTConfig{Cmd: script, TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})

	assert.Equal(t, "not json at all", pred.Raw)
	assert.Empty(t, pred.Answer.Paths)
}

func TestInvokeEmptyCommand(t *testing.T) {
	inv := NewInvoker(config.SUTConfig{Cmd: "", TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})
	assert.NotEmpty(t, pred.Error)
}

func TestInvokeExtraArgs(t *testing.T) {
	script := fakeSUT(t, `printf '{"answer": {"rationale": "%s"}}' "$*"`)

	inv := NewInvoker(config.SUTConfig{Cmd: script, ExtraArgs: []string{"--mode", "fast"}, TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})

	assert.Contains(t, pred.Answer.Rationale, "--mode fast")
}

func TestInvokeFailedWithNoOutput(t *testing.T) {
	script := fakeSUT(t, "exit 3")

	inv := NewInvoker(config.SUTConfig{Cmd: script, TimeoutS: 10})
	pred := inv.Invoke(context.Background(), model.Task{ID: "T1"})
	assert.NotEmpty(t, pred.Error)
	assert.NotEqual(t, ErrorTimeout, pred.Error)
}
