package learning

// Annealer owns the regularization weight of one training session
type Annealer struct {
	beta   float64
	step   float64
	max    float64
	warmup int
}

func NewAnnealer(h HyperParameters) *Annealer {
	return &Annealer{beta: h.BetaInit, step: h.BetaStep, max: h.BetaMax, warmup: h.WarmupEpochs}
}

func (a *Annealer) Beta() float64 {
	return a.beta
}

// EpochDone advances the schedule after training epoch (1-based) completes
func (a *Annealer) EpochDone(epoch int) {
	if epoch > a.warmup && a.beta < a.max {
		a.beta += a.step
		if a.beta > a.max {
			a.beta = a.max
		}
	}
}
