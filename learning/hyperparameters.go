package learning

import "io"

import log "github.com/sirupsen/logrus"
import "gopkg.in/cheggaaa/pb.v1"

// SetLogger replaces the logger epoch summaries and warnings are written to
func (h *HyperParameters) SetLogger(l log.FieldLogger) {
	h.l = l
}

// Logger is the logger set by SetLogger, or the standard logger
func (h *HyperParameters) Logger() log.FieldLogger {
	if h.l == nil {
		return log.StandardLogger()
	}
	return h.l
}

type HyperParameters struct {
	Epochs    int // number of epochs to train
	BatchSize int

	LearningRate float64
	WeightDecay  float64 // L2 penalty applied by the optimizer
	ClipNorm     float64 // global gradient norm threshold

	BetaInit     float64 // regularization weight before annealing starts
	BetaStep     float64 // increment after every epoch past the warmup
	BetaMax      float64
	WarmupEpochs int // epochs trained at BetaInit

	Prefetch int // batches materialized ahead of the training step

	DisableProgressBar bool

	l log.FieldLogger
}

// Schedule is the part of HyperParameters the trained weights depend on. Runtime knobs
// such as prefetch depth and progress bars are left out, so it keys caches and runs.
type Schedule struct {
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"lr"`
	WeightDecay  float64 `json:"weight_decay"`
	ClipNorm     float64 `json:"clip_norm"`
	BetaInit     float64 `json:"beta_init"`
	BetaStep     float64 `json:"beta_step"`
	BetaMax      float64 `json:"beta_max"`
	WarmupEpochs int     `json:"warmup_epochs"`
}

func (h HyperParameters) Schedule() Schedule {
	return Schedule{
		Epochs:       h.Epochs,
		BatchSize:    h.BatchSize,
		LearningRate: h.LearningRate,
		WeightDecay:  h.WeightDecay,
		ClipNorm:     h.ClipNorm,
		BetaInit:     h.BetaInit,
		BetaStep:     h.BetaStep,
		BetaMax:      h.BetaMax,
		WarmupEpochs: h.WarmupEpochs,
	}
}

// DefaultHyperParameters returns the schedule used for the reported experiments
func DefaultHyperParameters() HyperParameters {
	return HyperParameters{
		Epochs:       200,
		BatchSize:    64,
		LearningRate: 1e-3,
		WeightDecay:  1e-4,
		ClipNorm:     0.25,
		BetaInit:     0,
		BetaStep:     0.0025,
		BetaMax:      1,
		WarmupEpochs: 10,
		Prefetch:     2,
	}
}

// NewProgressBar starts a bar of total steps, silent when quiet is set
func NewProgressBar(total int, prefix string, quiet bool) *pb.ProgressBar {
	bar := pb.New(total).Prefix(prefix)
	if quiet {
		bar.NotPrint = true
		bar.Output = io.Discard
	}
	return bar.Start()
}
