package datasets

import "context"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// Loader yields fixed-shape batches in the same order on every pass
type Loader interface {
	Shape() Shape

	// Len is the number of samples across all batches
	Len() int

	NumBatches() int

	// Batch returns rows of flattened bars; only the last batch may be short
	Batch(i int) *mat.Dense
}

// SliceLoader batches an in-memory dataset without shuffling
type SliceLoader struct {
	data      Dataset
	batchSize int
}

func NewSliceLoader(d Dataset, batchSize int) (*SliceLoader, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("datasets: batch size %d must be positive", batchSize)
	}
	for i, s := range d.Samples {
		if len(s) != d.Shape.Size() {
			return nil, errors.Errorf("datasets: sample %d has %d values, want %d", i, len(s), d.Shape.Size())
		}
	}
	return &SliceLoader{data: d, batchSize: batchSize}, nil
}

func (l *SliceLoader) Shape() Shape { return l.data.Shape }

func (l *SliceLoader) Len() int { return l.data.Len() }

func (l *SliceLoader) Dataset() Dataset { return l.data }

func (l *SliceLoader) NumBatches() int {
	return (l.data.Len() + l.batchSize - 1) / l.batchSize
}

func (l *SliceLoader) Batch(i int) *mat.Dense {
	from := i * l.batchSize
	to := from + l.batchSize
	if to > l.data.Len() {
		to = l.data.Len()
	}
	size := l.data.Shape.Size()
	out := mat.NewDense(to-from, size, nil)
	for r := from; r < to; r++ {
		out.SetRow(r-from, l.data.Samples[r])
	}
	return out
}

// Prefetch materializes batches on a background goroutine, at most depth ahead of
// the consumer. Batches arrive in loader order. The channel is closed after the last
// batch or once ctx is done.
func Prefetch(ctx context.Context, l Loader, depth int) <-chan *mat.Dense {
	if depth < 0 {
		depth = 0
	}
	ch := make(chan *mat.Dense, depth)
	go func() {
		defer close(ch)
		for i := 0; i < l.NumBatches(); i++ {
			select {
			case ch <- l.Batch(i):
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
