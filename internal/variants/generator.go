// Package variants derives adversarial task/golden pairs from existing
// goldens. Only the stimulus is perturbed; acceptance criteria and
// golden truth are never altered.
package variants

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/model"
)

// Kind names a variant transformation.
type Kind string

const (
	KindCase     Kind = "case"
	KindReexport Kind = "reexport"
	KindTest     Kind = "test"
	KindVendor   Kind = "vendor"
	KindNearname Kind = "nearname"
)

// AllKinds lists every transformation in generation order.
var AllKinds = []Kind{KindCase, KindReexport, KindTest, KindVendor, KindNearname}

// transforms maps each kind to its pure string transform.
var transforms = map[Kind]func(string) string{
	KindCase:     CaseToggle,
	KindReexport: ReexportLayer,
	KindTest:     TestShadow,
	KindVendor:   VendorShadow,
	KindNearname: NearName,
}

// Pair is one generated variant: a task card plus its golden.
type Pair struct {
	Task   model.Task
	Golden model.Golden
}

// CaseToggle flips the case of a symbol wholesale: any lowercase
// present means uppercase everything, else lowercase everything.
func CaseToggle(symbol string) string {
	if symbol == "" {
		return symbol
	}
	if strings.ToUpper(symbol) != symbol {
		return strings.ToUpper(symbol)
	}
	return strings.ToLower(symbol)
}

// ReexportLayer replaces the final path component with a synthetic
// re-export file: daemon/foo.c -> daemon/index.c. Strings without a
// directory separator pass through unchanged.
func ReexportLayer(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path
	}
	return path[:idx] + "/index.c"
}

// TestShadow prefixes a test directory: daemon/foo.c -> tests/daemon/foo.c.
func TestShadow(path string) string {
	if path == "" {
		return path
	}
	return "tests/" + path
}

// VendorShadow prefixes a vendor directory: daemon/foo.c -> vendor/daemon/foo.c.
func VendorShadow(path string) string {
	if path == "" {
		return path
	}
	return "vendor/" + path
}

// NearName produces a minimal-edit near miss of a symbol via suffix
// rules, with a generic pluralization fallback.
func NearName(symbol string) string {
	if symbol == "" {
		return symbol
	}
	for _, suffix := range []string{"_display", "_create", "_init"} {
		if strings.HasSuffix(symbol, suffix) {
			return strings.TrimSuffix(symbol, suffix) + suffix + "s"
		}
	}
	if !strings.HasSuffix(symbol, "s") {
		return symbol + "s"
	}
	return symbol
}

// Generate derives up to limit variant pairs from the source goldens,
// cycling through the requested kinds per golden. Generation is fully
// deterministic: goldens in input order, kinds in AllKinds order, ids
// W1-VAR-001 upward. Unknown kinds are skipped with a warning.
func Generate(goldens []model.Golden, kinds []Kind, limit int) []Pair {
	if len(kinds) == 0 {
		kinds = AllKinds
	}

	var pairs []Pair
	for _, golden := range goldens {
		if len(pairs) >= limit {
			break
		}
		for _, kind := range kinds {
			if len(pairs) >= limit {
				break
			}
			transform, ok := transforms[kind]
			if !ok {
				zap.L().Warn("variants: unknown kind skipped", zap.String("kind", string(kind)))
				continue
			}
			id := fmt.Sprintf("W1-VAR-%03d", len(pairs)+1)
			pairs = append(pairs, Pair{
				Task:   variantTask(golden, id, kind, transform),
				Golden: variantGolden(golden, id, kind),
			})
		}
	}
	return pairs
}

// variantTask builds the perturbed task card. Only the stimulus and
// exclude-directory constraints change; acceptance criteria are copied
// from the source golden untouched.
func variantTask(source model.Golden, id string, kind Kind, transform func(string) string) model.Task {
	var inputs model.TaskInputs
	if source.Symbol != "" {
		inputs.Symbol = transform(source.Symbol)
	}

	// The shadowed directory must stay visible to the SUT or the
	// variant would be unanswerable.
	excludeDirs := []string{"vendor/", "tests/"}
	switch kind {
	case KindTest:
		excludeDirs = []string{"vendor/"}
	case KindVendor:
		excludeDirs = []string{"tests/"}
	}

	return model.Task{
		ID:       id,
		Workflow: model.WorkflowLocalization,
		Inputs:   inputs,
		Constraints: model.TaskConstraints{
			MustCite:    true,
			ExcludeDirs: excludeDirs,
		},
		AcceptanceCriteria: model.AcceptanceCriteria{
			Paths:      source.Paths,
			LineRanges: source.LineRanges,
			Checklist:  source.Checklist,
		},
		Tags: []string{"variant", string(kind), "from:" + source.TaskID},
	}
}

// variantGolden copies the source truth unchanged and records the
// derivation in provenance.
func variantGolden(source model.Golden, id string, kind Kind) model.Golden {
	return model.Golden{
		TaskID:     id,
		Paths:      source.Paths,
		LineRanges: source.LineRanges,
		Quotes:     source.Quotes,
		Provenance: model.Provenance{
			Repo:     source.Provenance.Repo,
			Commit:   source.Provenance.Commit,
			FromTask: source.TaskID,
			Method:   string(kind),
		},
		Notes: "Variant derived; truth unchanged",
	}
}

// Write persists variant tasks as one JSON file each under
// taskDir/variants and variant goldens as a single JSONL file under
// goldenDir/variants.
func Write(taskDir, goldenDir string, pairs []Pair) error {
	taskOut := filepath.Join(taskDir, "variants")
	goldenOut := filepath.Join(goldenDir, "variants")
	for _, dir := range []string{taskOut, goldenOut} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "variants: create dir %s", dir)
		}
	}

	for _, p := range pairs {
		data, err := json.MarshalIndent(p.Task, "", "  ")
		if err != nil {
			return eris.Wrapf(err, "variants: marshal task %s", p.Task.ID)
		}
		path := filepath.Join(taskOut, p.Task.ID+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "variants: write task %s", path)
		}
	}

	goldenPath := filepath.Join(goldenOut, "variants.jsonl")
	f, err := os.Create(goldenPath)
	if err != nil {
		return eris.Wrapf(err, "variants: create goldens %s", goldenPath)
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	for _, p := range pairs {
		if err := enc.Encode(p.Golden); err != nil {
			return eris.Wrapf(err, "variants: write golden %s", p.Golden.TaskID)
		}
	}

	zap.L().Info("variants: generated",
		zap.Int("count", len(pairs)),
		zap.String("tasks", taskOut),
		zap.String("goldens", goldenPath),
	)
	return nil
}
