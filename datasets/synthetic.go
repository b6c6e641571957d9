package datasets

import "math/rand"

// Synthetic generates seeded bars of random melodies, standing in for MIDI import
type Synthetic struct {
	Shape     Shape
	Samples   int
	ValidFrac float64
	TestFrac  float64
	Seed      int64
}

var durations = []int{1, 2, 4, 8}

// Bar draws one bar from rng. Poly stacks a third and a fifth over every note.
// With binarize active cells hold 1, otherwise a velocity quantized to classes levels.
func (s Synthetic) Bar(rng *rand.Rand, key Key) []float64 {
	bar := make([]float64, s.Shape.Size())
	pitch := rng.Intn(s.Shape.Pitches)
	for f := 0; f < s.Shape.Frames; {
		d := durations[rng.Intn(len(durations))]
		if f+d > s.Shape.Frames {
			d = s.Shape.Frames - f
		}
		if rng.Float64() >= 0.2 {
			v := 1.0
			if !key.Binarize {
				v = float64(1+rng.Intn(key.NumClasses-1)) / float64(key.NumClasses-1)
			}
			chord := []int{pitch}
			if key.ScoreType == Poly {
				chord = append(chord, pitch+3+rng.Intn(2), pitch+7)
			}
			for _, p := range chord {
				if p >= s.Shape.Pitches {
					continue
				}
				for i := f; i < f+d; i++ {
					bar[p*s.Shape.Frames+i] = v
				}
			}
		}
		f += d
		pitch += rng.Intn(9) - 4
		if pitch < 0 {
			pitch = 0
		}
		if pitch >= s.Shape.Pitches {
			pitch = s.Shape.Pitches - 1
		}
	}
	return bar
}

// Generate draws the whole corpus in order
func (s Synthetic) Generate(key Key) Dataset {
	rng := rand.New(rand.NewSource(s.Seed))
	d := Dataset{Shape: s.Shape, Samples: make([][]float64, s.Samples)}
	for i := range d.Samples {
		d.Samples[i] = s.Bar(rng, key)
	}
	return d
}

// Build is an Import builder splitting the generated corpus
func (s Synthetic) Build(key Key) (*Bundle, error) {
	train, valid, test, err := SplitDataset(s.Generate(key), s.ValidFrac, s.TestFrac)
	if err != nil {
		return nil, err
	}
	return &Bundle{Train: train, Valid: valid, Test: test}, nil
}
