package datasets

import "context"
import "math/rand"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/neurlang/rollvae/cache"

func indexed(n int, shape Shape) Dataset {
	d := Dataset{Shape: shape, Samples: make([][]float64, n)}
	for i := range d.Samples {
		d.Samples[i] = make([]float64, shape.Size())
		d.Samples[i][0] = float64(i)
	}
	return d
}

func TestSplitDataset(t *testing.T) {
	d := indexed(10, Shape{2, 2})
	train, valid, test, err := SplitDataset(d, 0.2, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 5, train.Len())
	assert.Equal(t, 2, valid.Len())
	assert.Equal(t, 3, test.Len())
	assert.Equal(t, 5.0, valid.Samples[0][0])
	assert.Equal(t, 7.0, test.Samples[0][0])

	_, _, _, err = SplitDataset(d, 0.5, 0.5)
	assert.Error(t, err)
}

func TestSliceLoaderOrder(t *testing.T) {
	d := indexed(7, Shape{1, 3})
	l, err := NewSliceLoader(d, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumBatches())
	assert.Equal(t, 7, l.Len())

	var seen []float64
	for b := range Prefetch(context.Background(), l, 2) {
		r, c := b.Dims()
		assert.Equal(t, 3, c)
		for i := 0; i < r; i++ {
			seen = append(seen, b.At(i, 0))
		}
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6}, seen)

	_, err = NewSliceLoader(d, 0)
	assert.Error(t, err)
	d.Samples[2] = []float64{1}
	_, err = NewSliceLoader(d, 2)
	assert.Error(t, err)
}

func TestPrefetchCancel(t *testing.T) {
	l, err := NewSliceLoader(indexed(100, Shape{1, 1}), 1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	ch := Prefetch(ctx, l, 0)
	<-ch
	cancel()
	for range ch {
	}
}

func TestSynthetic(t *testing.T) {
	s := Synthetic{Shape: Shape{24, 16}, Samples: 20, ValidFrac: 0.25, TestFrac: 0.25, Seed: 5}
	key := Key{Dataset: "synthetic", ScoreType: Mono, Binarize: true, NumClasses: 2}
	a := s.Generate(key)
	b := s.Generate(key)
	assert.Equal(t, a, b)
	for _, bar := range a.Samples {
		for f := 0; f < 16; f++ {
			active := 0
			for p := 0; p < 24; p++ {
				v := bar[p*16+f]
				assert.True(t, v == 0 || v == 1)
				if v > 0 {
					active++
				}
			}
			assert.LessOrEqual(t, active, 1)
		}
	}

	key.Binarize = false
	key.NumClasses = 5
	for _, bar := range s.Generate(key).Samples {
		for _, v := range bar {
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}

func TestImportCaches(t *testing.T) {
	store := cache.New(t.TempDir())
	s := Synthetic{Shape: Shape{12, 8}, Samples: 10, ValidFrac: 0.2, TestFrac: 0.2, Seed: 1}
	key := Key{Dataset: "synthetic", ScoreType: Poly, Binarize: true, NumClasses: 2}

	calls := 0
	build := func(k Key) (*Bundle, error) {
		calls++
		return s.Build(k)
	}
	first, err := Import(store, key, 2, build)
	require.NoError(t, err)
	second, err := Import(store, key, 2, build)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Train.Samples, second.Train.Samples)
	assert.Equal(t, 6, second.Train.Len())
	assert.Equal(t, first.TestFeatures, second.TestFeatures)
	assert.Len(t, second.TrainFeatures["nb_notes"], 6)

	_, err = Import(store, Key{Dataset: "x", ScoreType: "drums"}, 2, build)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	shape := Shape{Pitches: 12, Frames: 8}
	bar := make([]float64, shape.Size())
	set := func(p, from, to int) {
		for f := from; f < to; f++ {
			bar[p*shape.Frames+f] = 1
		}
	}
	// C E G E: up, up, down
	set(0, 0, 2)
	set(4, 2, 4)
	set(7, 4, 6)
	set(4, 6, 8)

	table := ComputeFeatures(Dataset{Shape: shape, Samples: [][]float64{bar, make([]float64, shape.Size())}}, 2)
	assert.Equal(t, 4.0, table["nb_notes"][0])
	assert.Equal(t, 0.5, table["note_density"][0])
	assert.Equal(t, 1.0, table["quality"][0])
	assert.Equal(t, 7.0, table["range"][0])
	assert.Equal(t, 3.0, table["pitch_variety"][0])
	assert.Equal(t, 1.0, table["amount_arpeggiation"][0])
	assert.Equal(t, 1.0, table["direction_motion"][0])

	for _, f := range Features {
		assert.Equal(t, 0.0, table[f.Name][1], f.Name)
	}
}

func TestBarStaysInRange(t *testing.T) {
	s := Synthetic{Shape: Shape{1, 16}}
	bar := s.Bar(rand.New(rand.NewSource(3)), Key{ScoreType: Poly, Binarize: true})
	assert.Len(t, bar, 16)
}
