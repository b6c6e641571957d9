package optim

import "math"

// Plateau lowers the learning rate by Factor once the monitored loss has not improved
// (relative Threshold) for more than Patience consecutive steps. The rate never drops
// below MinLR, and changes smaller than Eps are ignored.
type Plateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	Cooldown  int
	MinLR     float64
	Eps       float64

	opt      Optimizer
	best     float64
	bad      int
	cooldown int
}

// NewPlateau returns a scheduler with factor 0.5, patience 20, threshold 1e-4,
// no cooldown and a 1e-7 floor.
func NewPlateau(opt Optimizer) *Plateau {
	return &Plateau{
		Factor:    0.5,
		Patience:  20,
		Threshold: 1e-4,
		MinLR:     1e-7,
		Eps:       1e-8,
		opt:       opt,
		best:      math.Inf(1),
	}
}

// Best is the lowest loss seen so far
func (p *Plateau) Best() float64 {
	return p.best
}

// Step records loss and reports whether the learning rate was reduced
func (p *Plateau) Step(loss float64) (reduced bool) {
	if loss < p.best*(1-p.Threshold) {
		p.best = loss
		p.bad = 0
	} else {
		p.bad++
	}
	if p.cooldown > 0 {
		p.cooldown--
		p.bad = 0
	}
	if p.bad > p.Patience {
		old := p.opt.LearningRate()
		lr := math.Max(old*p.Factor, p.MinLR)
		if old-lr > p.Eps {
			p.opt.SetLearningRate(lr)
			reduced = true
		}
		p.cooldown = p.Cooldown
		p.bad = 0
	}
	return
}
