package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// LineRange is a half-open [Start, End) span of source lines. It is
// serialized as a two-element JSON array to match the fixture format.
type LineRange struct {
	Start int
	End   int
}

// MarshalJSON encodes the range as [start, end].
func (r LineRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{r.Start, r.End})
}

// UnmarshalJSON decodes a [start, end] array.
func (r *LineRange) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return eris.Wrap(err, "model: line range must be a [start, end] pair")
	}
	r.Start = pair[0]
	r.End = pair[1]
	return nil
}

// MarshalYAML encodes the range as a two-element sequence.
func (r LineRange) MarshalYAML() (interface{}, error) {
	return [2]int{r.Start, r.End}, nil
}

// UnmarshalYAML decodes a two-element sequence.
func (r *LineRange) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var pair [2]int
	if err := unmarshal(&pair); err != nil {
		return eris.Wrap(err, "model: line range must be a [start, end] pair")
	}
	r.Start = pair[0]
	r.End = pair[1]
	return nil
}
