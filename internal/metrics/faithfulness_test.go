package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/loceval/internal/model"
)

func TestFaithfulnessPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		ans          model.Answer
		citations    []model.Citation
		wantFaithful int
		wantReason   string
	}{
		{
			name:         "no citations wins over present quotes",
			ans:          model.Answer{Paths: []string{"x.c"}, Quotes: []string{"quoted evidence"}},
			citations:    nil,
			wantFaithful: 0,
			wantReason:   ReasonCiteMissing,
		},
		{
			name:         "irrelevant citations win over present quotes",
			ans:          model.Answer{Paths: []string{"x.c"}, Quotes: []string{"quoted evidence"}},
			citations:    []model.Citation{{Path: "other.c", Start: 1, End: 5}},
			wantFaithful: 0,
			wantReason:   ReasonCiteIrrelevant,
		},
		{
			name:         "overlapping citations but no quotes",
			ans:          model.Answer{Paths: []string{"x.c"}},
			citations:    []model.Citation{{Path: "x.c", Start: 1, End: 5}},
			wantFaithful: 0,
			wantReason:   ReasonNoQuotes,
		},
		{
			name:         "grounded answer",
			ans:          model.Answer{Paths: []string{"x.c"}, Quotes: []string{"evidence"}},
			citations:    []model.Citation{{Path: "x.c", Start: 1, End: 5}},
			wantFaithful: 1,
			wantReason:   ReasonOK,
		},
		{
			name:         "no asserted paths skips irrelevance check",
			ans:          model.Answer{Quotes: []string{"evidence"}},
			citations:    []model.Citation{{Path: "any.c", Start: 1, End: 5}},
			wantFaithful: 1,
			wantReason:   ReasonOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateFaithfulness(tt.ans, tt.citations)
			assert.Equal(t, tt.wantFaithful, got.Faithful)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}
