// Package dataloader batches a dataset partition into tensors ready for the
// training loop. Loading is strictly sequential; a decode failure aborts the
// epoch rather than silently dropping the sample.
package dataloader

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/moodlens/moodlens/tensor"
	"github.com/moodlens/moodlens/vision/transform"
)

// DefaultBatchSize is used when the config leaves BatchSize zero. Note the CLI
// default differs; see the train command.
const DefaultBatchSize = 32

// Dataset is the contract a partition view must satisfy.
type Dataset interface {
	Len() int
	GetItem(index int) (imagePath string, label int, err error)
	Transform() transform.Pipeline
}

// Config holds configuration for a DataLoader.
type Config struct {
	BatchSize int
	Shuffle   bool  // reshuffle the presentation order on every Reset
	Seed      int64 // 0 keeps shuffling unseeded
	Cache     *Cache // optional; only sound for deterministic transforms
}

// Batch is one batch of preprocessed samples.
type Batch struct {
	Images *tensor.Tensor // [batch, 3, size, size] Float32
	Labels *tensor.Tensor // [batch] Int32
	Size   int
}

// DataLoader yields batches over a dataset partition.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	indices   []int
	position  int
	rng       *rand.Rand
	cache     *Cache
	mu        sync.Mutex
}

// New creates a data loader over a partition. The partition must have a
// transform bound; the loader has no preprocessing of its own.
func New(dataset Dataset, config Config) (*DataLoader, error) {
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("cannot load from an empty dataset")
	}
	if dataset.Transform() == nil {
		return nil, fmt.Errorf("dataset has no transform bound")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		dataset:   dataset,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		indices:   indices,
		cache:     config.Cache,
	}
	if config.Seed != 0 {
		dl.rng = rand.New(rand.NewSource(config.Seed))
	}
	if dl.shuffle {
		dl.reshuffle()
	}
	return dl, nil
}

func (dl *DataLoader) reshuffle() {
	swap := func(i, j int) {
		dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
	}
	if dl.rng != nil {
		dl.rng.Shuffle(len(dl.indices), swap)
	} else {
		rand.Shuffle(len(dl.indices), swap)
	}
}

// Reset rewinds the loader to the beginning of the partition, reshuffling the
// presentation order when shuffling is enabled.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.reshuffle()
	}
}

// Len returns the number of batches one pass over the partition yields.
func (dl *DataLoader) Len() int {
	return (len(dl.indices) + dl.batchSize - 1) / dl.batchSize
}

// NumSamples returns the number of samples in the partition.
func (dl *DataLoader) NumSamples() int {
	return len(dl.indices)
}

// NextBatch yields the next batch, or (nil, nil) when the pass is complete.
// The final batch of a pass may be smaller than the configured batch size.
// Any decode or preprocessing error is returned as-is and aborts the pass.
func (dl *DataLoader) NextBatch() (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		batchSize = remaining
	}

	pipeline := dl.dataset.Transform()
	shape := pipeline.OutputShape()
	sampleElems := 1
	for _, dim := range shape {
		sampleElems *= dim
	}

	imageData := make([]float32, batchSize*sampleElems)
	labelData := make([]int32, batchSize)

	for i := 0; i < batchSize; i++ {
		idx := dl.indices[dl.position]
		imagePath, label, err := dl.dataset.GetItem(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sample %d: %w", idx, err)
		}

		sample, err := dl.loadSample(imagePath, pipeline, sampleElems)
		if err != nil {
			return nil, err
		}

		copy(imageData[i*sampleElems:(i+1)*sampleElems], sample)
		labelData[i] = int32(label)
		dl.position++
	}

	batchShape := append([]int{batchSize}, shape...)
	images, err := tensor.NewTensor(batchShape, tensor.Float32, imageData)
	if err != nil {
		return nil, fmt.Errorf("failed to build image batch: %w", err)
	}
	labels, err := tensor.NewTensor([]int{batchSize}, tensor.Int32, labelData)
	if err != nil {
		return nil, fmt.Errorf("failed to build label batch: %w", err)
	}

	return &Batch{Images: images, Labels: labels, Size: batchSize}, nil
}

func (dl *DataLoader) loadSample(imagePath string, pipeline transform.Pipeline, wantElems int) ([]float32, error) {
	if dl.cache != nil {
		if data, ok := dl.cache.Get(imagePath); ok {
			return data, nil
		}
	}

	img, err := transform.Decode(imagePath)
	if err != nil {
		return nil, err
	}

	out, err := pipeline.Apply(img)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess %s: %w", imagePath, err)
	}

	data, err := out.GetFloat32Data()
	if err != nil {
		return nil, err
	}
	if len(data) != wantElems {
		return nil, fmt.Errorf("transform produced %d elements for %s, expected %d", len(data), imagePath, wantElems)
	}

	if dl.cache != nil {
		dl.cache.Put(imagePath, data)
	}
	return data, nil
}

// Stats returns cache statistics, or an empty snapshot when no cache is set.
func (dl *DataLoader) Stats() CacheStats {
	if dl.cache == nil {
		return CacheStats{}
	}
	return dl.cache.Stats()
}
