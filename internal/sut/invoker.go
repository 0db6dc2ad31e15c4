// Package sut invokes the subject under test as an external process.
// The SUT is an opaque black box: it receives a task file path and
// must emit one JSON prediction on stdout.
package sut

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/model"
)

// ErrorTimeout marks a prediction synthesized for a timed-out
// invocation.
const ErrorTimeout = "timeout"

// Invoker runs the SUT once per task with a hard timeout. Invocation
// failures never surface as errors; they become degraded predictions
// that score as failures downstream.
type Invoker struct {
	cfg config.SUTConfig
}

// NewInvoker creates an Invoker from the sut_cli config section.
func NewInvoker(cfg config.SUTConfig) *Invoker {
	return &Invoker{cfg: cfg}
}

// Invoke serializes the task to a temp file, runs the SUT with
// `--task_file <path>` plus any configured extra args, and parses the
// prediction from stdout. A timeout yields a synthetic
// {error: timeout} prediction with zeroed tokens; unparsable output is
// retained verbatim in the Raw field.
func (inv *Invoker) Invoke(ctx context.Context, task model.Task) model.Prediction {
	taskPath, err := writeTaskFile(task)
	if err != nil {
		zap.L().Error("sut: write task file", zap.String("task_id", task.ID), zap.Error(err))
		return model.Prediction{Error: err.Error()}
	}
	defer os.Remove(taskPath) //nolint:errcheck

	argv := strings.Fields(inv.cfg.Cmd)
	if len(argv) == 0 {
		return model.Prediction{Error: "sut_cli.cmd is empty"}
	}
	argv = append(argv, "--task_file", taskPath)
	argv = append(argv, inv.cfg.ExtraArgs...)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(inv.cfg.TimeoutS)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	latencyMs := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		zap.L().Warn("sut: invocation timed out",
			zap.String("task_id", task.ID),
			zap.Int("timeout_s", inv.cfg.TimeoutS),
		)
		pred := model.Prediction{Error: ErrorTimeout}
		pred.Normalize(latencyMs)
		return pred
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		pred := model.Prediction{}
		if runErr != nil {
			zap.L().Warn("sut: invocation failed with no output",
				zap.String("task_id", task.ID),
				zap.String("stderr", stderr.String()),
				zap.Error(runErr),
			)
			pred.Error = runErr.Error()
		}
		pred.Normalize(latencyMs)
		return pred
	}

	var pred model.Prediction
	if err := json.Unmarshal([]byte(out), &pred); err != nil {
		zap.L().Warn("sut: unparsable output retained as raw",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		pred = model.Prediction{Raw: out}
	}
	pred.Normalize(latencyMs)
	return pred
}

func writeTaskFile(task model.Task) (string, error) {
	f, err := os.CreateTemp("", "loceval-task-*.json")
	if err != nil {
		return "", eris.Wrap(err, "sut: create task file")
	}
	defer f.Close() //nolint:errcheck

	if err := json.NewEncoder(f).Encode(task); err != nil {
		os.Remove(f.Name()) //nolint:errcheck
		return "", eris.Wrap(err, "sut: encode task")
	}
	return f.Name(), nil
}
