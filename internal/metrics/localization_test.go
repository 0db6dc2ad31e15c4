package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/loceval/internal/model"
)

func TestPathMatchSetSemantics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		pred   []string
		golden []string
		want   int
	}{
		{"order and duplicates irrelevant", []string{"b", "a", "a"}, []string{"a", "b"}, 1},
		{"exact match", []string{"a.c"}, []string{"a.c"}, 1},
		{"missing path is full miss", []string{"a"}, []string{"a", "b"}, 0},
		{"extra path is full miss", []string{"a", "b", "c"}, []string{"a", "b"}, 0},
		{"both empty match", nil, nil, 1},
		{"empty pred vs golden", nil, []string{"a"}, 0},
		{"pred vs empty golden", []string{"a"}, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathMatch(tt.pred, tt.golden))
		})
	}
}

func TestIoUProperties(t *testing.T) {
	t.Parallel()

	ranges := []model.LineRange{
		{Start: 10, End: 20},
		{Start: 1, End: 5},
		{Start: 12, End: 18},
		{Start: 0, End: 0},
		{Start: 15, End: 40},
	}
	for _, a := range ranges {
		for _, b := range ranges {
			v := IoU(a, b)
			assert.Equal(t, v, IoU(b, a), "IoU must be symmetric")
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestIoUIdentical(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, IoU(model.LineRange{Start: 10, End: 20}, model.LineRange{Start: 10, End: 20}), 1e-9)
}

func TestIoUDisjoint(t *testing.T) {
	t.Parallel()
	assert.Zero(t, IoU(model.LineRange{Start: 1, End: 5}, model.LineRange{Start: 10, End: 15}))
}

func TestIoUZeroUnion(t *testing.T) {
	t.Parallel()
	assert.Zero(t, IoU(model.LineRange{Start: 5, End: 5}, model.LineRange{Start: 5, End: 5}))
}

func TestIoUPartialOverlap(t *testing.T) {
	t.Parallel()
	// (12,18) vs (10,20): intersection 6, union 10.
	assert.InDelta(t, 0.6, IoU(model.LineRange{Start: 12, End: 18}, model.LineRange{Start: 10, End: 20}), 1e-9)
}

func TestLineIoUEmptyDegradesToZero(t *testing.T) {
	t.Parallel()

	golden := []model.LineRange{{Start: 1, End: 10}}
	got := LineIoU(nil, golden)
	assert.Zero(t, got.Avg)
	assert.Zero(t, got.Min)
	assert.Empty(t, got.PerRange)

	got = LineIoU(golden, nil)
	assert.Zero(t, got.Avg)
	assert.Zero(t, got.Min)
}

func TestLineIoUBestMatchAggregation(t *testing.T) {
	t.Parallel()

	pred := []model.LineRange{
		{Start: 10, End: 20}, // exact match -> 1.0
		{Start: 100, End: 110}, // disjoint from all -> 0.0
	}
	golden := []model.LineRange{
		{Start: 10, End: 20},
		{Start: 50, End: 60},
	}
	got := LineIoU(pred, golden)
	assert.InDelta(t, 0.5, got.Avg, 1e-9)
	assert.Zero(t, got.Min)
	assert.Equal(t, []float64{1.0, 0.0}, got.PerRange)
}

func TestSymbolPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		paths     []string
		quotes    []string
		symbol    string
		wantMatch int
		wantRate  float64
	}{
		{"no symbol trivially satisfied", nil, nil, "", 1, 1.0},
		{"symbol in quote", []string{"a.c"}, []string{"int normalize_url(void)"}, "normalize_url", 1, 1.0},
		{"symbol absent", []string{"a.c"}, []string{"something else"}, "normalize_url", 0, 0.0},
		{"no paths with required symbol", nil, []string{"normalize_url"}, "normalize_url", 0, 0.0},
		{"regex symbol", []string{"a.c"}, []string{"gdm_display_factory_create_display"}, "gdm_.*_create", 1, 1.0},
		{"invalid regex treated as literal", []string{"a.c"}, []string{"weird [symbol name"}, "[symbol", 1, 1.0},
		{"no quotes", []string{"a.c"}, nil, "sym", 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, rate := SymbolPresence(tt.paths, tt.quotes, tt.symbol)
			assert.Equal(t, tt.wantMatch, match)
			assert.InDelta(t, tt.wantRate, rate, 1e-9)
		})
	}
}

func TestEvaluateLocalization(t *testing.T) {
	t.Parallel()

	ans := model.Answer{
		Paths:      []string{"a.c"},
		LineRanges: []model.LineRange{{Start: 12, End: 18}},
		Quotes:     []string{"foo bar"},
	}
	golden := model.Golden{
		TaskID:     "T1",
		Paths:      []string{"a.c"},
		LineRanges: []model.LineRange{{Start: 10, End: 20}},
	}

	got := EvaluateLocalization(ans, golden, model.TaskInputs{Symbol: "foo"})
	assert.Equal(t, 1, got.PathMatch)
	assert.InDelta(t, 0.6, got.LineIoUMin, 1e-9)
	assert.InDelta(t, 0.6, got.LineIoUAvg, 1e-9)
	assert.Equal(t, 1, got.SymbolMatch)
	assert.InDelta(t, 1.0, got.SymbolPresenceRate, 1e-9)
}
