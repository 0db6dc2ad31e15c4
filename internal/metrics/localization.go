// Package metrics holds the pure scoring functions of the evaluation
// harness. Nothing in this package returns an error: absent or empty
// inputs degrade to defined zero values so a broken prediction scores
// as a failure instead of crashing a run.
package metrics

import (
	"regexp"

	"github.com/sells-group/loceval/internal/model"
)

// LocalizationScores are the raw localization metrics for one task.
type LocalizationScores struct {
	PathMatch          int     `json:"path_match"`
	LineIoUAvg         float64 `json:"line_iou_avg"`
	LineIoUMin         float64 `json:"line_iou_min"`
	SymbolMatch        int     `json:"symbol_match"`
	SymbolPresenceRate float64 `json:"symbol_presence_rate"`
}

// IoUScores aggregate the best-match IoU per predicted range.
type IoUScores struct {
	PerRange []float64
	Avg      float64
	Min      float64
}

// IoU computes interval-over-union of two line ranges. Ranges with a
// zero-length union score 0.
func IoU(a, b model.LineRange) float64 {
	inter := min(a.End, b.End) - max(a.Start, b.Start)
	if inter < 0 {
		inter = 0
	}
	union := max(a.End-a.Start, 0) + max(b.End-b.Start, 0) - inter
	if union <= 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// LineIoU scores each predicted range against its best-matching golden
// range. Either list being empty degrades everything to 0: absence of
// ranges is a failure, not "not applicable".
func LineIoU(pred, golden []model.LineRange) IoUScores {
	if len(pred) == 0 || len(golden) == 0 {
		return IoUScores{}
	}
	scores := IoUScores{PerRange: make([]float64, 0, len(pred)), Min: 1.0}
	var sum float64
	for _, p := range pred {
		best := 0.0
		for _, g := range golden {
			if v := IoU(p, g); v > best {
				best = v
			}
		}
		scores.PerRange = append(scores.PerRange, best)
		sum += best
		if best < scores.Min {
			scores.Min = best
		}
	}
	scores.Avg = sum / float64(len(scores.PerRange))
	return scores
}

// PathMatch returns 1 iff predicted and golden paths are equal as sets.
// Order and duplicates are irrelevant; there is no partial credit.
func PathMatch(pred, golden []string) int {
	ps := toSet(pred)
	gs := toSet(golden)
	if len(ps) != len(gs) {
		return 0
	}
	for p := range ps {
		if _, ok := gs[p]; !ok {
			return 0
		}
	}
	return 1
}

// symbolPattern compiles the symbol as a regular expression, falling
// back to a quoted literal when it is not valid regex syntax.
func symbolPattern(symbol string) *regexp.Regexp {
	if re, err := regexp.Compile(symbol); err == nil {
		return re
	}
	return regexp.MustCompile(regexp.QuoteMeta(symbol))
}

// SymbolPresence checks whether the target symbol appears in any
// predicted quote. Without a target symbol the check is trivially
// satisfied. The check spans all quotes combined, not per path; a
// multi-path answer is credited as long as one quote matches.
func SymbolPresence(predPaths []string, quotes []string, symbol string) (match int, rate float64) {
	if symbol == "" {
		return 1, 1.0
	}
	if len(predPaths) == 0 {
		return 0, 0.0
	}
	pat := symbolPattern(symbol)
	for _, q := range quotes {
		if pat.MatchString(q) {
			return 1, 1.0
		}
	}
	return 0, 0.0
}

// EvaluateLocalization scores one predicted answer against a golden.
func EvaluateLocalization(ans model.Answer, golden model.Golden, inputs model.TaskInputs) LocalizationScores {
	iou := LineIoU(ans.LineRanges, golden.LineRanges)
	match, rate := SymbolPresence(ans.Paths, ans.Quotes, inputs.Symbol)
	return LocalizationScores{
		PathMatch:          PathMatch(ans.Paths, golden.Paths),
		LineIoUAvg:         iou.Avg,
		LineIoUMin:         iou.Min,
		SymbolMatch:        match,
		SymbolPresenceRate: rate,
	}
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}
