package learning

import "math"

// Split names the part of the corpus a pass ran over
type Split int

const (
	Train Split = iota
	Validate
	Test
)

func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Validate:
		return "validate"
	case Test:
		return "test"
	}
	return "unknown"
}

// Suffix distinguishes the metric series of a split
func (s Split) Suffix() string {
	switch s {
	case Validate:
		return "_VALID"
	case Test:
		return "_TEST"
	}
	return ""
}

// Stats accumulates the losses of one pass over one split
type Stats struct {
	Split   Split
	Epoch   int
	Beta    float64
	Batches int

	Loss  float64
	KL    float64
	Recon float64

	// NonFinite counts batches whose loss or posterior had NaN or Inf values
	NonFinite int
}

func (s *Stats) Add(l Loss) {
	s.Batches++
	s.Loss += l.Total
	s.KL += l.KL
	s.Recon += l.Recon
}

// mean is NaN for a pass that saw no batch
func (s Stats) mean(v float64) float64 {
	if s.Batches == 0 {
		return math.NaN()
	}
	return v / float64(s.Batches)
}

func (s Stats) LossMean() float64  { return s.mean(s.Loss) }
func (s Stats) KLMean() float64    { return s.mean(s.KL) }
func (s Stats) ReconMean() float64 { return s.mean(s.Recon) }
