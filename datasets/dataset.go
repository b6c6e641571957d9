// Package datasets implements the piano-roll corpora consumed by training and analysis
package datasets

import "github.com/pkg/errors"

// Shape is the pitch x frame size of one bar
type Shape struct {
	Pitches int `json:"pitches"`
	Frames  int `json:"frames"`
}

// Size is the length of a flattened bar
func (s Shape) Size() int {
	return s.Pitches * s.Frames
}

// Dataset is an ordered corpus of flattened bars (pitch-major) sharing one shape
type Dataset struct {
	Shape   Shape
	Samples [][]float64
}

// Len is the number of bars
func (d Dataset) Len() int {
	return len(d.Samples)
}

// Slice returns the bars [from, to) sharing the backing rows
func (d Dataset) Slice(from, to int) Dataset {
	return Dataset{Shape: d.Shape, Samples: d.Samples[from:to]}
}

// SplitDataset cuts the corpus in order into train, validation and test parts.
// The validation and test parts take the given fractions, train keeps the rest.
func SplitDataset(d Dataset, validFrac, testFrac float64) (train, valid, test Dataset, err error) {
	if validFrac < 0 || testFrac < 0 || validFrac+testFrac >= 1 {
		err = errors.Errorf("datasets: split fractions %v and %v leave no training data", validFrac, testFrac)
		return
	}
	n := d.Len()
	nv := int(float64(n) * validFrac)
	nt := int(float64(n) * testFrac)
	nr := n - nv - nt
	return d.Slice(0, nr), d.Slice(nr, nr+nv), d.Slice(nr+nv, n), nil
}
