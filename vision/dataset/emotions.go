package dataset

import (
	"fmt"
)

// CanonicalEmotions is the class set of the standard facial-expression
// corpora this pipeline is built around.
var CanonicalEmotions = []string{"angry", "disgust", "fear", "happy", "neutral", "sad", "surprise"}

// EmotionDataset wraps an ImageFolderDataset whose classes are facial
// emotions, optionally capped per class to keep experiments small.
type EmotionDataset struct {
	*ImageFolderDataset
}

// NewEmotionDataset loads an emotion dataset from a directory-per-class tree.
// Class directories outside CanonicalEmotions are rejected: a stray folder in
// the dataset root would otherwise silently become an extra class. When
// maxSamplesPerClass is positive, each class keeps at most that many samples
// in scan order.
func NewEmotionDataset(root string, maxSamplesPerClass int) (*EmotionDataset, error) {
	base, err := NewImageFolderDataset(root, nil)
	if err != nil {
		return nil, err
	}

	for _, name := range base.ClassNames() {
		if !isCanonicalEmotion(name) {
			return nil, fmt.Errorf("class %q is not a recognized emotion (expected one of %v)",
				name, CanonicalEmotions)
		}
	}

	if maxSamplesPerClass <= 0 {
		return &EmotionDataset{ImageFolderDataset: base}, nil
	}

	perClass := make(map[int]int)
	var indices []int
	for i := 0; i < base.Len(); i++ {
		_, label, err := base.GetItem(i)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample %d: %w", i, err)
		}
		if perClass[label] >= maxSamplesPerClass {
			continue
		}
		perClass[label]++
		indices = append(indices, i)
	}

	capped, err := base.Subset(indices)
	if err != nil {
		return nil, err
	}
	return &EmotionDataset{ImageFolderDataset: capped}, nil
}

func isCanonicalEmotion(name string) bool {
	for _, emotion := range CanonicalEmotions {
		if name == emotion {
			return true
		}
	}
	return false
}
