package metrics

import (
	"strings"

	"github.com/sells-group/loceval/internal/model"
)

// Failure labels for the localization workflow.
const (
	LabelOK               = "ok"
	LabelMissingPath      = "missing_path"
	LabelWrongPath        = "wrong_path"
	LabelWrongLine        = "wrong_line"
	LabelSymbolAbsent     = "symbol_absent"
	LabelCiteMissing      = "cite_missing"
	LabelCiteIrrelevant   = "cite_irrelevant"
	LabelVendorHit        = "vendor_hit"
	LabelTestInsteadOfSrc = "test_instead_of_src"
	LabelLatencySLO       = "latency_slo"
	LabelCostSLO          = "cost_slo"
)

// Failure labels for the change-impact workflow.
const (
	LabelAnchorsMissing    = "anchors_missing"
	LabelAnchorsUnfaithful = "anchors_unfaithful"
	LabelForbiddenClaim    = "forbidden_claim"
)

// Labels is the taxonomy output: one primary label and any number of
// non-exclusive secondary labels.
type Labels struct {
	Primary   string   `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
}

// LabelThresholds carries the threshold and SLO values the classifier
// compares against.
type LabelThresholds struct {
	LineIoUMin       float64
	P95LatencyMs     int64
	MaxTokensIn      int64
	MaxTokensOut     int64
	MaxContextTokens int64
}

// MapLocalizationLabels turns raw localization scores into a primary
// failure label plus secondary labels. Primary rules form an ordered
// chain: only the first condition that fires sets the primary; later
// matches may still contribute secondaries.
func MapLocalizationLabels(pred model.Prediction, golden model.Golden, loc LocalizationScores, faith FaithfulnessVerdict, th LabelThresholds) Labels {
	var primary string
	var secondary []string

	predPaths := pred.Answer.Paths
	goldPaths := golden.Paths

	switch {
	case len(predPaths) == 0:
		primary = LabelMissingPath
	case len(goldPaths) > 0 && PathMatch(predPaths, goldPaths) == 0:
		primary = LabelWrongPath
	}
	if primary == "" && loc.LineIoUMin < th.LineIoUMin {
		primary = LabelWrongLine
	}

	if loc.SymbolMatch == 0 {
		secondary = append(secondary, LabelSymbolAbsent)
	}
	switch faith.Reason {
	case ReasonCiteMissing:
		secondary = append(secondary, LabelCiteMissing)
	case ReasonCiteIrrelevant:
		secondary = append(secondary, LabelCiteIrrelevant)
	}
	if anyPath(predPaths, isVendorPath) {
		secondary = append(secondary, LabelVendorHit)
	}
	if anyPath(predPaths, isTestPath) {
		secondary = append(secondary, LabelTestInsteadOfSrc)
	}
	secondary = append(secondary, sloLabels(pred, th)...)

	if primary == "" {
		if len(goldPaths) > 0 {
			primary = LabelOK
		} else {
			primary = LabelMissingPath
		}
	}
	return Labels{Primary: primary, Secondary: secondary}
}

// MapImpactLabels classifies a change-impact result. The forbidden
// claim check has the highest precedence and overrides any anchor
// state.
func MapImpactLabels(forbiddenHit bool, anchorsFound, anchorsFaithful, anchorsRequired int, pred model.Prediction, th LabelThresholds) Labels {
	primary := LabelOK
	if anchorsFound < anchorsRequired {
		primary = LabelAnchorsMissing
	} else if anchorsFaithful < anchorsRequired {
		primary = LabelAnchorsUnfaithful
	}
	if forbiddenHit {
		primary = LabelForbiddenClaim
	}
	return Labels{Primary: primary, Secondary: sloLabels(pred, th)}
}

// sloLabels emits the latency and token-cost SLO secondaries shared by
// both workflows.
func sloLabels(pred model.Prediction, th LabelThresholds) []string {
	var labels []string
	if th.P95LatencyMs > 0 && pred.Timing.LatencyMs > th.P95LatencyMs {
		labels = append(labels, LabelLatencySLO)
	}
	tok := pred.Tokens
	if (th.MaxTokensIn > 0 && tok.In > th.MaxTokensIn) ||
		(th.MaxTokensOut > 0 && tok.Out > th.MaxTokensOut) ||
		(th.MaxContextTokens > 0 && tok.Context > th.MaxContextTokens) {
		labels = append(labels, LabelCostSLO)
	}
	return labels
}

// isVendorPath recognizes vendored or third-party sources. The bare
// "vendor/" form only counts as a leading path component, so a
// directory like "myvendor/" does not trip it.
func isVendorPath(p string) bool {
	return strings.HasPrefix(p, "vendor/") ||
		strings.Contains(p, "/vendor/") ||
		strings.Contains(p, "third_party")
}

// isTestPath recognizes test trees; "tests/" likewise only counts at
// the start of the path.
func isTestPath(p string) bool {
	return strings.HasPrefix(p, "tests/") || strings.Contains(p, "/test")
}

func anyPath(paths []string, match func(string) bool) bool {
	for _, p := range paths {
		if match(p) {
			return true
		}
	}
	return false
}
