package main

import "context"
import "fmt"
import "math/rand"
import "os"
import "os/signal"
import "path/filepath"
import "syscall"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "github.com/spf13/cobra"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/rollvae/analysis"
import "github.com/neurlang/rollvae/config"
import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/device"
import "github.com/neurlang/rollvae/latent"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/model"
import "github.com/neurlang/rollvae/parallel"
import "github.com/neurlang/rollvae/probe"

var (
	configPath string
	epoch      int
	trackBars  int
	skipTSNE   bool
	skipProbes bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "analyze_latent",
	Short: "Analyze the latent space of a trained model",
	Long: `analyze_latent loads the best model of the configured run (or the model
of one epoch) and writes its analyses to the run directory:

  analysis/pca_<split>_<feature>.csv    3 component PCA fit on train
  analysis/tsne_test_<feature>.csv      t-SNE of the test split
  analysis/trajectory.csv               consecutive test bars in PCA space
  midi/traversal_*.mid                  raw and PCA dimension traversals
  midi/arithmetic_*.mid                 A-B+C style latent arithmetic

Examples:
  analyze_latent --config run.yaml
  analyze_latent --config run.yaml --epoch 120 --skip-tsne`,
	SilenceUsage: true,
	RunE:         runAnalyze,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (yaml, toml or json)")
	rootCmd.Flags().IntVar(&epoch, "epoch", 0, "analyze this epoch's checkpoint instead of the best model")
	rootCmd.Flags().IntVar(&trackBars, "track-bars", 16, "consecutive test bars of the trajectory")
	rootCmd.Flags().BoolVar(&skipTSNE, "skip-tsne", false, "do not embed the test split with t-SNE")
	rootCmd.Flags().BoolVar(&skipProbes, "skip-probes", false, "do not train the feature probes")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyLogging()
	dev, err := device.Parse(cfg.Device)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bundle, err := cfg.ImportDataset(dev.Workers())
	if err != nil {
		return err
	}
	train, valid, test, err := bundle.Loaders(cfg.Data.BatchSize)
	if err != nil {
		return err
	}

	name, err := cfg.BestModel()
	if err != nil {
		return err
	}
	if epoch > 0 {
		prefix, err := cfg.ModelPrefix()
		if err != nil {
			return err
		}
		name = learning.ModelPath(prefix, epoch)
	}
	m, err := model.LoadFull(name, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	m.SetTraining(false)

	runDir, err := cfg.RunDir()
	if err != nil {
		return err
	}
	a := &analyzer{
		cfg:    cfg,
		model:  m,
		bundle: bundle,
		dir:    filepath.Join(runDir, "analysis"),
		midi:   filepath.Join(runDir, "midi"),
		logger: log.WithFields(log.Fields{"model": m.Kind(), "source": name}),

		workers: dev.Workers(),
	}
	for _, dir := range []string{a.dir, a.midi} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	key := latent.Key{
		Dataset:  cfg.DatasetKey(),
		Model:    m.Config(),
		Training: cfg.HyperParameters().Schedule(),
		Seed:     cfg.Seed,
		Epoch:    epoch,
	}
	codes, err := latent.LoadOrExtract(ctx, cfg.Store(), key, m, train, valid, test)
	if err != nil {
		return err
	}
	if means := latent.VarianceMeans(codes); means != nil {
		a.logger.WithField("log_variance", means).Info("latent variance means")
	}

	steps := []func(context.Context, *latent.Bundle) error{
		a.projections,
		a.traversals,
		a.arithmetic,
		a.tsne,
		a.probes,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx, codes); err != nil {
			return err
		}
	}
	a.logger.WithField("dir", a.dir).Info("analysis done")
	return nil
}

type analyzer struct {
	cfg    *config.Config
	model  model.Model
	bundle *datasets.Bundle
	dir    string
	midi   string
	logger log.FieldLogger

	workers int
	pca     *analysis.PCA
}

// writeColored exports points once per feature, coloured by that feature
func (a *analyzer) writeColored(prefix, split string, points *mat.Dense, features datasets.FeatureTable) error {
	for _, f := range datasets.Features {
		p, err := analysis.NewColoredProjection(split, f.Name, points, features[f.Name])
		if err != nil {
			return err
		}
		if err := writeCSV(filepath.Join(a.dir, fmt.Sprintf("%s_%s_%s.csv", prefix, split, f.Name)), p); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(name string, p *analysis.ColoredProjection) error {
	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create csv")
	}
	defer f.Close()
	if err := analysis.WriteCSV(f, p); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return f.Close()
}

func (a *analyzer) projections(ctx context.Context, codes *latent.Bundle) error {
	full, err := analysis.Project(codes, a.model.Config().LatentSize)
	if err != nil {
		return err
	}
	a.logger.WithField("explained_variance", full.PCA.ExplainedVariance()).Info("pca over all components")

	proj, err := analysis.Project(codes, a.cfg.Analysis.Components)
	if err != nil {
		return err
	}
	a.pca = proj.PCA
	for _, split := range []struct {
		name   string
		points *mat.Dense
	}{{"train", proj.Train}, {"valid", proj.Valid}, {"test", proj.Test}} {
		if split.points == nil {
			continue
		}
		if err := a.writeColored("pca", split.name, split.points, a.bundle.Features(split.name)); err != nil {
			return err
		}
	}

	track := a.bundle.Test
	if track.Len() > trackBars {
		track = track.Slice(0, trackBars)
	}
	if track.Len() == 0 {
		return nil
	}
	path, err := analysis.Trajectory(ctx, a.model, track, a.pca)
	if err != nil {
		return err
	}
	order := make([]float64, track.Len())
	for i := range order {
		order[i] = float64(i)
	}
	p, err := analysis.NewColoredProjection("test", "bar", path, order)
	if err != nil {
		return err
	}
	return writeCSV(filepath.Join(a.dir, "trajectory.csv"), p)
}

func (a *analyzer) traversals(ctx context.Context, codes *latent.Bundle) error {
	if codes.Test.Len() == 0 {
		return nil
	}
	base := mat.Row(nil, 0, codes.Test.Points())
	t := analysis.Traversal{Steps: a.cfg.Analysis.TraversalSteps, Span: a.cfg.Analysis.TraversalSpan}
	bar := a.cfg.Bar()

	for _, space := range []struct {
		name string
		proj *analysis.PCA
		dims int
	}{
		{"raw", nil, a.model.Config().LatentSize},
		{"pca", a.pca, a.pca.Components()},
	} {
		dims := make([]int, space.dims)
		for i := range dims {
			dims[i] = i
		}
		decoded, err := t.Evaluate(a.model, base, dims, space.proj)
		if err != nil {
			return err
		}
		for d, grid := range decoded {
			for s := 0; s < t.Steps; s++ {
				name := filepath.Join(a.midi, fmt.Sprintf("traversal_%s_dim_%d_step_%d.mid", space.name, d, s))
				if err := bar.WriteFile(name, grid.RawRowView(s)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (a *analyzer) arithmetic(ctx context.Context, codes *latent.Bundle) error {
	if a.bundle.Test.Len() == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(a.cfg.Seed))
	bar := a.cfg.Bar()
	for run := 0; run < a.cfg.Analysis.Arithmetic; run++ {
		res, err := analysis.VectorArithmetic(a.model, a.bundle.Test, rng)
		if err != nil {
			return err
		}
		for i, label := range analysis.ArithmeticLabels {
			name := filepath.Join(a.midi, fmt.Sprintf("arithmetic_%d_%s.mid", run, label))
			if err := bar.WriteFile(name, res.Decoded.RawRowView(i)); err != nil {
				return err
			}
		}
		a.logger.WithFields(log.Fields{"run": run, "indices": res.Indices}).Debug("latent arithmetic")
	}
	return nil
}

func (a *analyzer) tsne(ctx context.Context, codes *latent.Bundle) error {
	if skipTSNE || codes.Test.Len() < 2 {
		return nil
	}
	t := analysis.DefaultTSNE()
	t.Perplexity = a.cfg.Analysis.Perplexity
	t.Iterations = a.cfg.Analysis.TSNEIterations
	t.Seed = a.cfg.Seed
	t.Threads = a.workers
	embedded, err := t.Embed(codes.Test.Points())
	if err != nil {
		return err
	}
	return a.writeColored("tsne", "test", embedded, a.bundle.TestFeatures)
}

func (a *analyzer) probes(ctx context.Context, codes *latent.Bundle) error {
	if skipProbes || codes.Train.Len() == 0 || codes.Valid.Len() == 0 || codes.Test.Len() == 0 {
		return nil
	}
	cfg := a.cfg.ProbeConfig()
	reports := make([]*probe.Report, len(datasets.Features))
	err := parallel.ForEachErr(len(datasets.Features), a.workers, func(i int) (err error) {
		f := datasets.Features[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		reports[i], err = probe.Train(f.Name, f.Kind,
			probe.Split{Latent: codes.Train.Points(), Targets: a.bundle.TrainFeatures[f.Name]},
			probe.Split{Latent: codes.Valid.Points(), Targets: a.bundle.ValidFeatures[f.Name]},
			probe.Split{Latent: codes.Test.Points(), Targets: a.bundle.TestFeatures[f.Name]},
			cfg)
		return err
	})
	if errors.Is(err, probe.ErrUnknownFeatureKind) {
		log.Fatal(err)
	}
	if err != nil {
		return err
	}
	for _, r := range reports {
		a.logger.WithFields(log.Fields{
			"feature":    r.Feature,
			"kind":       r.Kind,
			"classes":    r.Classes,
			"best_epoch": r.BestEpoch,
			"valid_loss": r.BestValid,
			"test_loss":  r.BestTest,
		}).Info("probe done")
	}
	return nil
}
