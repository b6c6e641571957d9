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

import "github.com/neurlang/rollvae/config"
import "github.com/neurlang/rollvae/datasets"
import "github.com/neurlang/rollvae/device"
import "github.com/neurlang/rollvae/learning"
import "github.com/neurlang/rollvae/metrics"
import "github.com/neurlang/rollvae/model"
import "github.com/neurlang/rollvae/trainer"

var (
	configPath string
	resume     int
	pgo        bool
	samples    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "train_vae",
	Short: "Train a piano-roll autoencoder",
	Long: `train_vae trains the configured model variant on the piano-roll corpus.

Every epoch is checkpointed twice (full model and parameters only) under the
run directory, the model with the best validation loss is kept separately and
a few test bars with their reconstructions are exported as MIDI files.

Examples:
  train_vae --config run.yaml
  ROLLVAE_MODEL_KIND=wae train_vae
  train_vae --config run.yaml --resume 40`,
	SilenceUsage: true,
	RunE:         runTrain,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (yaml, toml or json)")
	rootCmd.Flags().IntVar(&resume, "resume", 0, "continue after this checkpointed epoch")
	rootCmd.Flags().BoolVar(&pgo, "pgo", false, "write a CPU profile to default.pgo")
	rootCmd.Flags().IntVar(&samples, "samples", 4, "test bars exported as MIDI every epoch")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	cfg.ApplyLogging()
	dev, err := device.Parse(cfg.Device)
	if err != nil {
		log.Fatal(err)
	}
	log.WithFields(log.Fields{
		"device":  dev.Brand,
		"threads": dev.Threads,
		"avx2":    dev.AVX2,
		"avx512":  dev.AVX512,
	}).Info("device")

	if pgo {
		stop, err := startProfile("default.pgo")
		if err != nil {
			return err
		}
		defer stop()
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

	m, err := model.New(cfg.ModelConfig(), rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		log.Fatal(err)
	}
	modelPrefix, err := cfg.ModelPrefix()
	if err != nil {
		return err
	}
	weightsPrefix, err := cfg.WeightsPrefix()
	if err != nil {
		return err
	}
	bestModel, err := cfg.BestModel()
	if err != nil {
		return err
	}
	runDir, err := cfg.RunDir()
	if err != nil {
		return err
	}
	if resume > 0 {
		if err := trainer.Resume(m, weightsPrefix, resume); err != nil {
			return errors.Wrapf(err, "resume epoch %d", resume)
		}
	}

	run := metrics.NewRunID()
	logger := log.WithFields(log.Fields{"run": run, "model": cfg.Model.Kind})
	sink := metrics.Multi{metrics.LogSink{Logger: logger, Run: run}}
	if cfg.Metrics.MongoURI != "" {
		mongo, err := metrics.DialMongo(ctx, cfg.Metrics.MongoURI, cfg.Metrics.Database, cfg.Metrics.Collection, run)
		if err != nil {
			return err
		}
		sink = append(sink, mongo)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.WithError(err).Warn("closing metrics")
		}
	}()

	h := cfg.HyperParameters()
	h.SetLogger(logger)
	loop := trainer.Loop{
		Learn:         learning.New(m, h),
		Train:         train,
		Valid:         valid,
		Test:          test,
		Sink:          sink,
		ModelPrefix:   modelPrefix,
		WeightsPrefix: weightsPrefix,
		BestModel:     bestModel,
		Start:         resume,
		OnEpoch:       exportReconstructions(cfg, test.Dataset(), filepath.Join(runDir, "midi")),
	}
	logger.WithFields(log.Fields{
		"dir":   runDir,
		"train": train.Len(),
		"valid": valid.Len(),
		"test":  test.Len(),
	}).Info("training")

	sel, err := trainer.NewLoopFunc(loop)(ctx)
	done := "training done"
	switch {
	case errors.Is(err, context.Canceled):
		done = "training interrupted"
	case err != nil:
		return err
	}
	logger.WithFields(log.Fields{
		"best_epoch": sel.Epoch,
		"valid_loss": sel.Valid,
		"test_loss":  sel.Test,
		"model":      bestModel,
	}).Info(done)
	return nil
}

// exportReconstructions writes the first test bars and their decoded reconstructions
// as MIDI files under dir
func exportReconstructions(cfg *config.Config, test datasets.Dataset, dir string) func(int, model.Model) error {
	n := samples
	if n > test.Len() {
		n = test.Len()
	}
	bar := cfg.Bar()
	var wroteInputs bool
	return func(epoch int, m model.Model) error {
		if n == 0 {
			return nil
		}
		x := mat.NewDense(n, test.Shape.Size(), nil)
		for i := 0; i < n; i++ {
			x.SetRow(i, test.Samples[i])
		}
		m.SetTraining(false)
		recon := m.Decode(m.MeanCode(x))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create midi directory")
		}
		for i := 0; i < n; i++ {
			if !wroteInputs {
				if err := bar.WriteFile(filepath.Join(dir, fmt.Sprintf("bar_%d.mid", i)), x.RawRowView(i)); err != nil {
					return err
				}
			}
			name := filepath.Join(dir, fmt.Sprintf("epoch_%d_bar_%d.mid", epoch, i))
			if err := bar.WriteFile(name, recon.RawRowView(i)); err != nil {
				return err
			}
		}
		wroteInputs = true
		return nil
	}
}
