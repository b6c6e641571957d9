package pianoroll

import "os"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// Bar describes how one flattened bar maps to MIDI notes
type Bar struct {
	Pitches  int
	Frames   int
	MinPitch int

	// Poly keeps every pitch above Threshold, otherwise only the loudest one per frame
	Poly      bool
	Threshold float64

	TicksPerFrame int
}

// Notes decodes a flattened bar (a reconstruction or a corpus sample)
func (b Bar) Notes(row []float64) []Note {
	grid := Grid(row, b.Pitches, b.Frames)
	var roll *mat.Dense
	if b.Poly {
		roll = Polyphonic(grid, b.Threshold)
	} else {
		roll = Monophonic(grid, b.Threshold)
	}
	return Events(roll, b.MinPitch)
}

// WriteFile exports row as a Standard MIDI File at name
func (b Bar) WriteFile(name string, row []float64) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create midi file")
	}
	defer f.Close()
	if err := WriteMIDI(f, b.Notes(row), b.TicksPerFrame); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return f.Close()
}
