package data

import (
	"math/rand"
)

// Loader iterates a dataset in mini-batches, optionally reshuffling the
// sample order on every Reset.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
	pos       int
}

// NewLoader creates a loader over ds. batchSize is clamped to the dataset
// size; the final batch of an epoch may be smaller than batchSize.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, seed int64) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	if n := ds.Len(); n > 0 && batchSize > n {
		batchSize = n
	}

	l := &Loader{
		ds:        ds,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l
}

// Reset rewinds the loader to the start of an epoch, reshuffling when
// shuffle is enabled.
func (l *Loader) Reset() {
	l.pos = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next returns the next mini-batch of images and labels. ok is false once
// the epoch is exhausted.
func (l *Loader) Next() (images []float32, labels []int, ok bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}

	end := l.pos + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}

	batch := l.order[l.pos:end]
	images = make([]float32, 0, len(batch)*ImageSize)
	labels = make([]int, 0, len(batch))
	for _, i := range batch {
		images = append(images, l.ds.Image(i)...)
		labels = append(labels, l.ds.Labels[i])
	}

	l.pos = end
	return images, labels, true
}

// Len returns the number of samples behind the loader.
func (l *Loader) Len() int {
	return l.ds.Len()
}

// NumBatches returns the number of batches in one epoch.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}
