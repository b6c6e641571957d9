package trainer

import "context"

import log "github.com/sirupsen/logrus"

import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/metrics"
import "github.com/neurlang/rollvae/optim"

// Report emits the per-split scalar series of one pass
func Report(sink metrics.Sink, s learning.Stats) {
	suffix := s.Split.Suffix()
	sink.Scalar("data/loss_mean"+suffix, s.Epoch, s.LossMean())
	sink.Scalar("data/kl_div_mean"+suffix, s.Epoch, s.KLMean())
	sink.Scalar("data/reconst_loss_mean"+suffix, s.Epoch, s.ReconMean())
}

// NewEvaluateFunc returns the evaluation step of an epoch: a validation pass whose mean
// loss drives the plateau schedule, followed by a test pass
func NewEvaluateFunc(l *learning.Learn, valid, test datasets.Loader, plateau *optim.Plateau,
	sink metrics.Sink) func(ctx context.Context, epoch int) (learning.Stats, learning.Stats) {

	return func(ctx context.Context, epoch int) (learning.Stats, learning.Stats) {
		v := l.Validate(ctx, valid, epoch)
		Report(sink, v)
		if v.Batches > 0 && plateau.Step(v.LossMean()) {
			l.Logger().WithFields(log.Fields{
				"epoch": epoch,
				"lr":    l.Optimizer.LearningRate(),
			}).Info("learning rate reduced")
		}
		t := l.Test(ctx, test, epoch)
		Report(sink, t)
		return v, t
	}
}
