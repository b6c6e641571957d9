// Package pianoroll converts pitch x frame grids into note events and MIDI.
package pianoroll

import "sort"

import "gonum.org/v1/gonum/mat"

// DefaultVelocity is assigned to every decoded note
const DefaultVelocity = 75

// Note is one contiguous active run of a pitch row, End is exclusive
type Note struct {
	Pitch    int
	Start    int
	End      int
	Velocity int
}

// Grid reshapes a flattened sample (pitch-major) into a pitches x frames matrix
func Grid(row []float64, pitches, frames int) *mat.Dense {
	data := make([]float64, pitches*frames)
	copy(data, row)
	return mat.NewDense(pitches, frames, data)
}

// Monophonic keeps the arg-max pitch of every frame, marking it 1 when its value
// exceeds threshold. Every other cell is 0.
func Monophonic(grid mat.Matrix, threshold float64) *mat.Dense {
	pitches, frames := grid.Dims()
	out := mat.NewDense(pitches, frames, nil)
	for f := 0; f < frames; f++ {
		best := 0
		for p := 1; p < pitches; p++ {
			if grid.At(p, f) > grid.At(best, f) {
				best = p
			}
		}
		if grid.At(best, f) > threshold {
			out.Set(best, f, 1)
		}
	}
	return out
}

// Polyphonic marks every cell above threshold
func Polyphonic(grid mat.Matrix, threshold float64) *mat.Dense {
	pitches, frames := grid.Dims()
	out := mat.NewDense(pitches, frames, nil)
	for p := 0; p < pitches; p++ {
		for f := 0; f < frames; f++ {
			if grid.At(p, f) > threshold {
				out.Set(p, f, 1)
			}
		}
	}
	return out
}

// Events decodes a roll into notes. Every row is padded with one silent frame on
// both sides and scanned for changes between consecutive frames: a rise from zero
// opens a note, a fall to zero closes it, changes between two non-zero values
// are ignored. minPitch is added to the row index.
// Notes are ordered by start frame, then pitch.
func Events(roll mat.Matrix, minPitch int) (notes []Note) {
	pitches, frames := roll.Dims()
	for p := 0; p < pitches; p++ {
		var prev float64
		start := 0
		for f := 0; f <= frames; f++ {
			var cur float64
			if f < frames {
				cur = roll.At(p, f)
			}
			switch {
			case prev == 0 && cur != 0:
				start = f
			case prev != 0 && cur == 0:
				notes = append(notes, Note{
					Pitch:    p + minPitch,
					Start:    start,
					End:      f,
					Velocity: DefaultVelocity,
				})
			}
			prev = cur
		}
	}
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
	return notes
}
