// Package dataset loads directory-per-class image collections and partitions
// them into train/validation/test views.
package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/moodlens/moodlens/vision/transform"
)

// ImageFolderDataset represents a labeled image collection loaded from a
// directory structure where each immediate subdirectory is a class. A dataset
// is either a root collection (indices nil) or a partition view into one;
// views share the backing path/label slices by reference and never mutate
// them, but each view owns its transform binding.
type ImageFolderDataset struct {
	imagePaths []string
	labels     []int
	classNames []string
	classToIdx map[string]int

	indices   []int // nil for the root collection
	transform transform.Pipeline
}

// NewImageFolderDataset creates a dataset from a directory structure. Classes
// with zero matching images are skipped by the scan.
func NewImageFolderDataset(root string, extensions []string) (*ImageFolderDataset, error) {
	if len(extensions) == 0 {
		extensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root %s is not a directory", root)
	}

	dataset := &ImageFolderDataset{
		classToIdx: make(map[string]int),
	}

	classes, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}

	for _, classPath := range classes {
		info, err := os.Stat(classPath)
		if err != nil || !info.IsDir() {
			continue
		}

		className := filepath.Base(classPath)
		var classFiles []string
		for _, ext := range extensions {
			files, err := filepath.Glob(filepath.Join(classPath, "*"+ext))
			if err != nil {
				continue
			}
			classFiles = append(classFiles, files...)
		}
		if len(classFiles) == 0 {
			continue
		}

		classIdx := len(dataset.classNames)
		dataset.classNames = append(dataset.classNames, className)
		dataset.classToIdx[className] = classIdx

		for _, file := range classFiles {
			dataset.imagePaths = append(dataset.imagePaths, file)
			dataset.labels = append(dataset.labels, classIdx)
		}
	}

	if len(dataset.imagePaths) == 0 {
		return nil, fmt.Errorf("no images found in %s", root)
	}

	return dataset, nil
}

// Len returns the number of samples visible through this dataset or view.
func (d *ImageFolderDataset) Len() int {
	if d.indices != nil {
		return len(d.indices)
	}
	return len(d.imagePaths)
}

// GetItem returns the image path and label at the given index, resolved
// through the view's index list when present.
func (d *ImageFolderDataset) GetItem(index int) (string, int, error) {
	if index < 0 || index >= d.Len() {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, d.Len())
	}
	if d.indices != nil {
		index = d.indices[index]
	}
	return d.imagePaths[index], d.labels[index], nil
}

// NumClasses returns the number of classes.
func (d *ImageFolderDataset) NumClasses() int {
	return len(d.classNames)
}

// ClassNames returns the ordered list of class names.
func (d *ImageFolderDataset) ClassNames() []string {
	return d.classNames
}

// SetTransform binds a preprocessing pipeline to this dataset or view only.
// Sibling views of the same collection are not affected.
func (d *ImageFolderDataset) SetTransform(p transform.Pipeline) {
	d.transform = p
}

// Transform returns the pipeline bound to this dataset or view.
func (d *ImageFolderDataset) Transform() transform.Pipeline {
	return d.transform
}

// ClassDistribution returns the number of samples per class.
func (d *ImageFolderDataset) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for i := 0; i < d.Len(); i++ {
		_, label, err := d.GetItem(i)
		if err != nil {
			continue
		}
		dist[d.classNames[label]]++
	}
	return dist
}

// view creates a partition view over the given indices. The view shares the
// backing slices and starts with no transform bound.
func (d *ImageFolderDataset) view(indices []int) *ImageFolderDataset {
	return &ImageFolderDataset{
		imagePaths: d.imagePaths,
		labels:     d.labels,
		classNames: d.classNames,
		classToIdx: d.classToIdx,
		indices:    indices,
	}
}

// Subset creates a view of the dataset restricted to the given indices.
func (d *ImageFolderDataset) Subset(indices []int) (*ImageFolderDataset, error) {
	resolved := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, fmt.Errorf("subset index %d out of range [0, %d)", idx, d.Len())
		}
		if d.indices != nil {
			idx = d.indices[idx]
		}
		resolved[i] = idx
	}
	return d.view(resolved), nil
}

// Split3 partitions the dataset into disjoint train/validation/test views
// using a random permutation. Sizes are floor(trainFrac*N) and
// floor(valFrac*N); the test view absorbs the rounding remainder. A zero seed
// keeps the split unseeded (different membership every run); a non-zero seed
// makes it reproducible.
func (d *ImageFolderDataset) Split3(trainFrac, valFrac float64, seed int64) (train, val, test *ImageFolderDataset, err error) {
	if trainFrac <= 0 || valFrac <= 0 || trainFrac+valFrac >= 1 {
		return nil, nil, nil, fmt.Errorf("invalid split fractions %.2f/%.2f", trainFrac, valFrac)
	}

	n := d.Len()
	if n < 3 {
		return nil, nil, nil, fmt.Errorf("dataset too small to split: %d samples", n)
	}

	var perm []int
	if seed != 0 {
		perm = rand.New(rand.NewSource(seed)).Perm(n)
	} else {
		perm = rand.Perm(n)
	}

	trainSize := floorFraction(trainFrac, n)
	valSize := floorFraction(valFrac, n)

	resolve := func(raw []int) []int {
		if d.indices == nil {
			return raw
		}
		out := make([]int, len(raw))
		for i, idx := range raw {
			out[i] = d.indices[idx]
		}
		return out
	}

	train = d.view(resolve(perm[:trainSize]))
	val = d.view(resolve(perm[trainSize : trainSize+valSize]))
	test = d.view(resolve(perm[trainSize+valSize:]))
	return train, val, test, nil
}

// floorFraction computes floor(frac*n) exactly for decimal fractions.
// Naive float multiplication truncates wrongly when frac*n is an integer:
// 0.7*90 evaluates to 62.999... and int() gives 62 instead of 63. Products
// within rounding error of an integer snap to it before flooring.
func floorFraction(frac float64, n int) int {
	x := frac * float64(n)
	if r := math.Round(x); math.Abs(x-r) < 1e-6 {
		return int(r)
	}
	return int(math.Floor(x))
}

// String returns a human-readable summary of the dataset.
func (d *ImageFolderDataset) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolderDataset: %d samples, %d classes\n", d.Len(), len(d.classNames)))
	sb.WriteString("Class distribution:\n")

	dist := d.ClassDistribution()
	for _, className := range d.classNames {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", className, dist[className]))
	}
	return sb.String()
}
