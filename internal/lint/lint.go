// Package lint is the read-only fixture and artifact checker. It
// collects every problem it finds instead of stopping at the first,
// so curators get the full punch list in one pass.
package lint

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/taskstore"
)

// Linter checks the evaluation workspace against the configuration.
type Linter struct {
	cfg        *config.Config
	configFile string
}

// New builds a linter. configFile is the on-disk config the unknown-key
// check parses; it may be absent.
func New(cfg *config.Config, configFile string) *Linter {
	return &Linter{cfg: cfg, configFile: configFile}
}

// Run executes every check and returns all collected problems. An
// empty slice means the workspace is clean.
func (l *Linter) Run() []string {
	var errs []string
	errs = append(errs, l.checkConfigKeys()...)
	errs = append(errs, l.checkPaths()...)
	errs = append(errs, l.checkCIWorkflow()...)
	errs = append(errs, l.checkScenariosVsGoldens()...)
	errs = append(errs, l.checkReportsRegistry()...)
	errs = append(errs, l.checkJudgesAndPolicy()...)
	return errs
}

// checkConfigKeys flags unknown top-level sections in the config file.
// Unknown keys are a lint finding, never a load failure.
func (l *Linter) checkConfigKeys() []string {
	data, err := os.ReadFile(l.configFile)
	if err != nil {
		return nil // no config file means defaults, nothing to lint
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return []string{"Config file is not valid YAML: " + l.configFile}
	}

	allowed := make(map[string]struct{}, len(config.TopLevelKeys))
	for _, k := range config.TopLevelKeys {
		allowed[k] = struct{}{}
	}
	var unknown []string
	for k := range raw {
		if _, ok := allowed[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return []string{"Unknown top-level config keys: [" + strings.Join(unknown, " ") + "]"}
}

func (l *Linter) checkPaths() []string {
	var errs []string
	for _, d := range []struct{ name, path string }{
		{"scenarios", l.cfg.Paths.Scenarios},
		{"goldens", l.cfg.Paths.Goldens},
		{"canary", l.cfg.Paths.Canary},
		{"judges", l.cfg.Paths.Judges},
		{"reports", l.cfg.Paths.Reports},
		{"registry", l.cfg.Paths.Registry},
	} {
		if info, err := os.Stat(d.path); err != nil || !info.IsDir() {
			errs = append(errs, "Missing directory: paths."+d.name+" -> "+d.path)
		}
	}
	return errs
}

// checkCIWorkflow verifies the evals workflow exists in the current
// workspace and still invokes the runner with an explicit suite.
func (l *Linter) checkCIWorkflow() []string {
	const wf = ".github/workflows/evals.yml"
	data, err := os.ReadFile(wf)
	if err != nil {
		return []string{"Missing CI workflow " + wf}
	}
	text := string(data)
	if !strings.Contains(text, "loceval run") || !strings.Contains(text, "--suite") {
		return []string{"CI does not invoke loceval run with --suite"}
	}
	return nil
}

// checkScenariosVsGoldens flags every task whose id has no golden.
// Canaries score against the main localization goldens, so they are
// checked against that set too.
func (l *Linter) checkScenariosVsGoldens() []string {
	var errs []string

	w1Goldens, _ := taskstore.LoadGoldens(filepath.Join(l.cfg.Paths.Goldens, "w1_localization"))
	w1Tasks, _ := taskstore.LoadTasks(filepath.Join(l.cfg.Paths.Scenarios, "w1_localization"))
	for _, task := range w1Tasks {
		if _, ok := w1Goldens[task.ID]; !ok {
			errs = append(errs, "W1 task without golden: "+task.ID)
		}
	}

	w2Goldens, _ := taskstore.LoadGoldens(filepath.Join(l.cfg.Paths.Goldens, "w2_change_impact"))
	w2Tasks, _ := taskstore.LoadTasks(filepath.Join(l.cfg.Paths.Scenarios, "w2_change_impact"))
	for _, task := range w2Tasks {
		if _, ok := w2Goldens[task.ID]; !ok {
			errs = append(errs, "W2 task without golden: "+task.ID)
		}
	}

	canaryTasks, _ := taskstore.LoadTasks(filepath.Join(l.cfg.Paths.Canary, "w1_localization"))
	for _, task := range canaryTasks {
		if _, ok := w1Goldens[task.ID]; !ok {
			errs = append(errs, "Canary without matching golden: "+task.ID)
		}
	}
	return errs
}

// checkReportsRegistry verifies the newest run directory carries its
// artifacts and that a registry ledger exists in either backend format.
func (l *Linter) checkReportsRegistry() []string {
	var errs []string

	entries, err := os.ReadDir(l.cfg.Paths.Reports)
	if err != nil {
		errs = append(errs, "Reports directory missing or empty")
	} else {
		var runs []string
		for _, e := range entries {
			if e.IsDir() {
				runs = append(runs, e.Name())
			}
		}
		if len(runs) > 0 {
			sort.Strings(runs)
			latest := runs[len(runs)-1]
			runDir := filepath.Join(l.cfg.Paths.Reports, latest)
			if !fileExists(filepath.Join(runDir, "summary.json")) {
				errs = append(errs, "Missing summary.json in "+latest)
			}
			if !fileExists(filepath.Join(runDir, "by_task.csv")) && !fileExists(filepath.Join(runDir, "w2_by_task.csv")) {
				errs = append(errs, "Missing *_by_task.csv in "+latest)
			}
		}
	}

	if !fileExists(filepath.Join(l.cfg.Paths.Registry, "runs.db")) &&
		!fileExists(filepath.Join(l.cfg.Paths.Registry, "runs.csv")) {
		errs = append(errs, "Registry file not found (runs.db or runs.csv)")
	}
	return errs
}

// checkJudgesAndPolicy verifies the judge prompt, its calibration set,
// and the canary policy document.
func (l *Linter) checkJudgesAndPolicy() []string {
	var errs []string

	prompt := filepath.Join(l.cfg.Paths.Judges, "change_impact", "prompt.md")
	if data, err := os.ReadFile(prompt); err != nil {
		errs = append(errs, "Missing judge prompt.md")
	} else {
		text := string(data)
		if !strings.Contains(text, `"pass"`) || !strings.Contains(text, `"checks"`) {
			errs = append(errs, "prompt.md lacks JSON schema snippet")
		}
	}

	if !fileExists(filepath.Join(l.cfg.Paths.Judges, "change_impact", "calibration.jsonl")) {
		errs = append(errs, "Missing judges/change_impact/calibration.jsonl")
	}

	policy := filepath.Join(filepath.Dir(l.cfg.Paths.Judges), "policies", "canary_policy.md")
	if !fileExists(policy) {
		errs = append(errs, "Missing "+policy)
	}
	return errs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
