package datasets

import "sort"

import "github.com/xtgo/set"

import "github.com/neurlang/rollvae/parallel"
import "github.com/neurlang/rollvae/pianoroll"

// FeatureKind decides how a probe treats a feature
type FeatureKind int

const (
	// Int features are class indices
	Int FeatureKind = iota
	// Float features are regressed
	Float
	// Bool features are binary classes
	Bool
)

func (k FeatureKind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	}
	return "unknown"
}

// Feature is a named per-bar symbolic descriptor
type Feature struct {
	Name string
	Kind FeatureKind
}

// Features lists every descriptor ComputeFeatures produces, in report order
var Features = []Feature{
	{"nb_notes", Int},
	{"note_density", Float},
	{"quality", Bool},
	{"range", Int},
	{"pitch_variety", Int},
	{"amount_arpeggiation", Float},
	{"direction_motion", Int},
}

// FeatureTable maps a feature name to per-bar values aligned with the corpus order
type FeatureTable map[string][]float64

// ComputeFeatures describes every bar of d using up to threads goroutines
func ComputeFeatures(d Dataset, threads int) FeatureTable {
	table := make(FeatureTable, len(Features))
	for _, f := range Features {
		table[f.Name] = make([]float64, d.Len())
	}
	parallel.ForEach(d.Len(), threads, func(i int) {
		grid := pianoroll.Grid(d.Samples[i], d.Shape.Pitches, d.Shape.Frames)
		notes := pianoroll.Events(pianoroll.Polyphonic(grid, 0), 0)
		values := describe(notes, d.Shape.Frames)
		for j, f := range Features {
			table[f.Name][i] = values[j]
		}
	})
	return table
}

// describe computes the Features of one bar in declaration order
func describe(notes []pianoroll.Note, frames int) []float64 {
	out := make([]float64, len(Features))
	if len(notes) == 0 {
		return out
	}
	pitches := make([]int, len(notes))
	lo, hi := notes[0].Pitch, notes[0].Pitch
	for i, n := range notes {
		pitches[i] = n.Pitch
		if n.Pitch < lo {
			lo = n.Pitch
		}
		if n.Pitch > hi {
			hi = n.Pitch
		}
	}

	out[0] = float64(len(notes))
	out[1] = float64(len(notes)) / float64(frames)
	out[2] = bool2float(major(pitches))
	out[3] = float64(hi - lo)

	distinct := append([]int(nil), pitches...)
	sort.Ints(distinct)
	out[4] = float64(set.Uniq(sort.IntSlice(distinct)))

	melody := topLine(notes)
	var leaps, changes, last int
	for i := 1; i < len(melody); i++ {
		step := melody[i] - melody[i-1]
		switch abs(step) {
		case 3, 4, 7:
			leaps++
		}
		dir := sign(step)
		if dir != 0 {
			if last != 0 && dir != last {
				changes++
			}
			last = dir
		}
	}
	if len(melody) > 1 {
		out[5] = float64(leaps) / float64(len(melody)-1)
	}
	out[6] = float64(changes)
	return out
}

// major reports whether major thirds above the lowest pitch class outnumber minor ones
func major(pitches []int) bool {
	root := pitches[0]
	for _, p := range pitches {
		if p < root {
			root = p
		}
	}
	var maj, minor int
	for _, p := range pitches {
		switch (p - root) % 12 {
		case 4:
			maj++
		case 3:
			minor++
		}
	}
	return maj >= minor
}

// topLine is the highest pitch of every onset time, in time order
func topLine(notes []pianoroll.Note) (line []int) {
	for i, n := range notes {
		if i > 0 && notes[i-1].Start == n.Start {
			if n.Pitch > line[len(line)-1] {
				line[len(line)-1] = n.Pitch
			}
			continue
		}
		line = append(line, n.Pitch)
	}
	return line
}

func bool2float(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
