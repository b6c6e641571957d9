package analysis

import "encoding/csv"
import "io"
import "math"
import "strconv"

import "github.com/lucasb-eyer/go-colorful"
import "github.com/pkg/errors"
import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

// ColorByFeature maps feature values onto a hue ramp from purple (lowest) to red
// (highest). A constant feature is coloured uniformly.
func ColorByFeature(values []float64) []colorful.Color {
	out := make([]colorful.Color, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := floats.Min(values), floats.Max(values)
	for i, v := range values {
		t := 0.0
		if hi > lo {
			t = (v - lo) / (hi - lo)
		}
		out[i] = colorful.Hsl(270*(1-t), 0.7, 0.5).Clamped()
	}
	return out
}

// ColoredProjection is one split's projected points coloured by one feature
type ColoredProjection struct {
	Split   string
	Feature string
	Points  *mat.Dense
	Values  []float64
	Colors  []colorful.Color
}

// NewColoredProjection pairs projected points with the aligned feature values
func NewColoredProjection(split, feature string, points *mat.Dense, values []float64) (*ColoredProjection, error) {
	n, _ := points.Dims()
	if n != len(values) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d points colored by %d %s values", n, len(values), feature)
	}
	return &ColoredProjection{
		Split:   split,
		Feature: feature,
		Points:  points,
		Values:  values,
		Colors:  ColorByFeature(values),
	}, nil
}

// WriteCSV writes one row per point: the coordinates, the feature value and the
// colour as a hex triplet
func WriteCSV(w io.Writer, p *ColoredProjection) error {
	n, dims := p.Points.Dims()
	cw := csv.NewWriter(w)
	header := make([]string, 0, dims+2)
	for k := 0; k < dims; k++ {
		header = append(header, "x"+strconv.Itoa(k))
	}
	header = append(header, p.Feature, "color")
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		record := make([]string, 0, dims+2)
		for k := 0; k < dims; k++ {
			record = append(record, format(p.Points.At(i, k)))
		}
		record = append(record, format(p.Values[i]), p.Colors[i].Hex())
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func format(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
