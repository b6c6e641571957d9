package datasets

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"

import "github.com/neurlang/rollvae/cache"

// Key identifies one dataset import
type Key struct {
	Dataset    string `json:"dataset"`
	ScoreType  string `json:"score_type"`
	Binarize   bool   `json:"binarize"`
	NumClasses int    `json:"num_classes"`
}

// Score types
const (
	Mono = "mono"
	Poly = "poly"
)

func (k Key) Validate() error {
	if k.ScoreType != Mono && k.ScoreType != Poly {
		return errors.Errorf("datasets: unknown score type %q", k.ScoreType)
	}
	if !k.Binarize && k.NumClasses < 2 {
		return errors.Errorf("datasets: %d velocity classes, need at least 2", k.NumClasses)
	}
	return nil
}

// Bundle is the imported corpus, already split, with the symbolic features of every split
type Bundle struct {
	Train Dataset
	Valid Dataset
	Test  Dataset

	TrainFeatures FeatureTable
	ValidFeatures FeatureTable
	TestFeatures  FeatureTable
}

// Import returns the bundle cached under key. On a miss it builds the corpus,
// computes its features with up to threads goroutines and caches the result.
func Import(store *cache.Store, key Key, threads int, build func(Key) (*Bundle, error)) (*Bundle, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var b Bundle
	err := store.Load(key, &b)
	if err == nil {
		log.WithFields(log.Fields{"dataset": key.Dataset, "train": b.Train.Len()}).Info("dataset loaded from cache")
		return &b, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, err
	}
	built, err := build(key)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", key.Dataset)
	}
	built.TrainFeatures = ComputeFeatures(built.Train, threads)
	built.ValidFeatures = ComputeFeatures(built.Valid, threads)
	built.TestFeatures = ComputeFeatures(built.Test, threads)
	if err := store.Save(key, built); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"dataset": key.Dataset,
		"train":   built.Train.Len(),
		"valid":   built.Valid.Len(),
		"test":    built.Test.Len(),
	}).Info("dataset imported")
	return built, nil
}

// Loaders batches the three splits of b in corpus order
func (b *Bundle) Loaders(batchSize int) (train, valid, test *SliceLoader, err error) {
	if train, err = NewSliceLoader(b.Train, batchSize); err != nil {
		return
	}
	if valid, err = NewSliceLoader(b.Valid, batchSize); err != nil {
		return
	}
	test, err = NewSliceLoader(b.Test, batchSize)
	return
}

// Features returns the feature table aligned with the named split
func (b *Bundle) Features(split string) FeatureTable {
	switch split {
	case "train":
		return b.TrainFeatures
	case "valid":
		return b.ValidFeatures
	case "test":
		return b.TestFeatures
	}
	return nil
}
