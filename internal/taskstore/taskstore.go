// Package taskstore loads task and golden fixtures from directory
// trees. Fixtures are read-only inputs: tasks as .json/.yaml/.yml
// files (one task per file), goldens as .jsonl files keyed by task_id.
package taskstore

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/loceval/internal/model"
)

// LoadTasks walks each directory in order and loads every task file
// found, sorted by path within a directory. Missing directories yield
// no tasks rather than an error so canary/variant dirs can be empty.
// Nested directory sets (a dir plus one of its subdirectories) load
// each file once.
func LoadTasks(dirs ...string) ([]model.Task, error) {
	var tasks []model.Task
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		files, err := globFiles(dir, ".json", ".yaml", ".yml")
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			task, err := loadTaskFile(path)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// LoadGoldens walks each directory in order and merges every JSONL
// golden record into one map keyed by task id. When the same id
// appears twice the later record wins; the collision is logged so
// fixture curators notice base/variant overlaps.
func LoadGoldens(dirs ...string) (map[string]model.Golden, error) {
	goldens := make(map[string]model.Golden)
	for _, dir := range dirs {
		files, err := globFiles(dir, ".jsonl")
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			if err := loadGoldenFile(path, goldens); err != nil {
				return nil, err
			}
		}
	}
	return goldens, nil
}

// LoadGoldenRecords returns every golden record in file order without
// keying or deduplication. The variant generator needs the stable
// ordering to produce deterministic output.
func LoadGoldenRecords(dirs ...string) ([]model.Golden, error) {
	var records []model.Golden
	for _, dir := range dirs {
		files, err := globFiles(dir, ".jsonl")
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			recs, err := readGoldenLines(path)
			if err != nil {
				return nil, err
			}
			records = append(records, recs...)
		}
	}
	return records, nil
}

// CountTasks reports how many task files a directory holds without
// decoding beyond the minimum. Used by dry-run.
func CountTasks(dir string) int {
	tasks, err := LoadTasks(dir)
	if err != nil {
		return 0
	}
	return len(tasks)
}

func loadTaskFile(path string) (model.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Task{}, eris.Wrapf(err, "taskstore: read task %s", path)
	}

	var task model.Task
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &task); err != nil {
			return model.Task{}, eris.Wrapf(err, "taskstore: parse task %s", path)
		}
	} else {
		if err := yaml.Unmarshal(data, &task); err != nil {
			return model.Task{}, eris.Wrapf(err, "taskstore: parse task %s", path)
		}
	}
	return task, nil
}

func loadGoldenFile(path string, goldens map[string]model.Golden) error {
	records, err := readGoldenLines(path)
	if err != nil {
		return err
	}
	for _, g := range records {
		if g.TaskID == "" {
			continue
		}
		if _, exists := goldens[g.TaskID]; exists {
			zap.L().Warn("taskstore: golden id collision, later record wins",
				zap.String("task_id", g.TaskID),
				zap.String("file", path),
			)
		}
		goldens[g.TaskID] = g
	}
	return nil
}

func readGoldenLines(path string) ([]model.Golden, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taskstore: open goldens %s", path)
	}
	defer f.Close() //nolint:errcheck

	var records []model.Golden
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var g model.Golden
		if err := json.Unmarshal([]byte(text), &g); err != nil {
			return nil, eris.Wrapf(err, "taskstore: parse golden %s line %d", path, line)
		}
		records = append(records, g)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "taskstore: scan goldens %s", path)
	}
	return records, nil
}

// globFiles returns all files under dir with one of the extensions,
// sorted. A missing dir returns no files.
func globFiles(dir string, exts ...string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(path)
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				paths = append(paths, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "taskstore: walk %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}
