package metrics

import "github.com/sells-group/loceval/internal/model"

// Faithfulness reasons, in decision order.
const (
	ReasonOK             = "ok"
	ReasonCiteMissing    = "cite_missing"
	ReasonCiteIrrelevant = "cite_irrelevant"
	ReasonNoQuotes       = "no_quotes"
)

// FaithfulnessVerdict is the binary faithfulness outcome plus the
// first applicable reason.
type FaithfulnessVerdict struct {
	Faithful int    `json:"faithful"`
	Reason   string `json:"faithfulness_reason"`
}

// EvaluateFaithfulness checks whether an answer is grounded in its own
// citations. The four-way decision is evaluated in strict order and
// returns on the first applicable reason; only "ok" counts as faithful.
func EvaluateFaithfulness(ans model.Answer, citations []model.Citation) FaithfulnessVerdict {
	if len(citations) == 0 {
		return FaithfulnessVerdict{Faithful: 0, Reason: ReasonCiteMissing}
	}

	citedPaths := make(map[string]struct{}, len(citations))
	for _, c := range citations {
		if c.Path != "" {
			citedPaths[c.Path] = struct{}{}
		}
	}

	if len(ans.Paths) > 0 {
		overlap := false
		for _, p := range ans.Paths {
			if _, ok := citedPaths[p]; ok {
				overlap = true
				break
			}
		}
		if !overlap {
			return FaithfulnessVerdict{Faithful: 0, Reason: ReasonCiteIrrelevant}
		}
	}

	if len(ans.Quotes) == 0 {
		return FaithfulnessVerdict{Faithful: 0, Reason: ReasonNoQuotes}
	}

	return FaithfulnessVerdict{Faithful: 1, Reason: ReasonOK}
}
