package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moodlens/moodlens/vision/transform"
)

// createTestDataset creates a temporary directory structure with dummy image
// files. File contents never get decoded by this package, so placeholder bytes
// are enough.
func createTestDataset(t *testing.T, classes []string, imagesPerClass int) string {
	t.Helper()
	tempDir := t.TempDir()

	for _, className := range classes {
		classDir := filepath.Join(tempDir, className)
		if err := os.MkdirAll(classDir, 0755); err != nil {
			t.Fatalf("Failed to create class directory %s: %v", classDir, err)
		}

		for i := 0; i < imagesPerClass; i++ {
			imagePath := filepath.Join(classDir, fmt.Sprintf("image_%d.jpg", i))
			if err := os.WriteFile(imagePath, []byte("placeholder"), 0644); err != nil {
				t.Fatalf("Failed to create mock image %s: %v", imagePath, err)
			}
		}
	}

	return tempDir
}

func TestNewImageFolderDataset(t *testing.T) {
	t.Run("ValidDataset", func(t *testing.T) {
		classes := []string{"angry", "happy", "sad"}
		tempDir := createTestDataset(t, classes, 5)

		dataset, err := NewImageFolderDataset(tempDir, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if dataset.Len() != 15 {
			t.Errorf("Expected 15 images, got %d", dataset.Len())
		}
		if dataset.NumClasses() != 3 {
			t.Errorf("Expected 3 classes, got %d", dataset.NumClasses())
		}
	})

	t.Run("MissingRoot", func(t *testing.T) {
		if _, err := NewImageFolderDataset("/nonexistent/path", nil); err == nil {
			t.Error("Expected error for missing root directory")
		}
	})

	t.Run("EmptyRoot", func(t *testing.T) {
		if _, err := NewImageFolderDataset(t.TempDir(), nil); err == nil {
			t.Error("Expected error for root with no images")
		}
	})

	t.Run("EmptyClassSkipped", func(t *testing.T) {
		tempDir := createTestDataset(t, []string{"happy"}, 3)
		if err := os.MkdirAll(filepath.Join(tempDir, "empty"), 0755); err != nil {
			t.Fatalf("Failed to create empty class dir: %v", err)
		}

		dataset, err := NewImageFolderDataset(tempDir, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if dataset.NumClasses() != 1 {
			t.Errorf("Expected empty class to be skipped, got %d classes", dataset.NumClasses())
		}
	})
}

func TestGetItem(t *testing.T) {
	tempDir := createTestDataset(t, []string{"happy", "sad"}, 2)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	path, label, err := dataset.GetItem(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if path == "" {
		t.Error("Expected non-empty image path")
	}
	if label < 0 || label >= dataset.NumClasses() {
		t.Errorf("Label %d out of range", label)
	}

	if _, _, err := dataset.GetItem(dataset.Len()); err == nil {
		t.Error("Expected error for out-of-range index")
	}
	if _, _, err := dataset.GetItem(-1); err == nil {
		t.Error("Expected error for negative index")
	}
}

func TestSplit3Sizes(t *testing.T) {
	// Partition sizes must be exactly floor(0.7N) and floor(0.15N) for any
	// N >= 3, with the test split absorbing the rounding remainder. Sizes
	// where 0.7N is an exact integer (90, 170, 180) are the ones a naive
	// float multiply gets wrong, so they stay in this list.
	for _, n := range []int{3, 4, 7, 10, 20, 33, 90, 100, 170, 180} {
		t.Run(fmt.Sprintf("N%d", n), func(t *testing.T) {
			tempDir := createTestDataset(t, []string{"only"}, n)
			dataset, err := NewImageFolderDataset(tempDir, nil)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			train, val, test, err := dataset.Split3(0.7, 0.15, 42)
			if err != nil {
				t.Fatalf("Split3 failed: %v", err)
			}

			expectedTrain := n * 7 / 10
			expectedVal := n * 3 / 20
			if train.Len() != expectedTrain {
				t.Errorf("Train size: expected %d, got %d", expectedTrain, train.Len())
			}
			if val.Len() != expectedVal {
				t.Errorf("Val size: expected %d, got %d", expectedVal, val.Len())
			}
			if train.Len()+val.Len()+test.Len() != n {
				t.Errorf("Partition sizes %d+%d+%d do not sum to %d",
					train.Len(), val.Len(), test.Len(), n)
			}
		})
	}
}

func TestSplit3TwentySamples(t *testing.T) {
	// The 2-class, 10-image-per-class scenario: 20 samples split 14/3/3.
	tempDir := createTestDataset(t, []string{"happy", "sad"}, 10)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	train, val, test, err := dataset.Split3(0.7, 0.15, 1)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}

	if train.Len() != 14 || val.Len() != 3 || test.Len() != 3 {
		t.Errorf("Expected 14/3/3 split, got %d/%d/%d", train.Len(), val.Len(), test.Len())
	}
}

func TestSplit3NinetySamples(t *testing.T) {
	// 0.7*90 is exactly 63, but the float64 product is 62.999... and a bare
	// int() conversion used to shave a sample off the train partition.
	tempDir := createTestDataset(t, []string{"only"}, 90)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	train, val, test, err := dataset.Split3(0.7, 0.15, 1)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}

	if train.Len() != 63 || val.Len() != 13 || test.Len() != 14 {
		t.Errorf("Expected 63/13/14 split, got %d/%d/%d", train.Len(), val.Len(), test.Len())
	}
}

func TestSplit3Disjoint(t *testing.T) {
	tempDir := createTestDataset(t, []string{"a", "b"}, 25)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	train, val, test, err := dataset.Split3(0.7, 0.15, 99)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}

	seen := make(map[string]string)
	for name, part := range map[string]*ImageFolderDataset{"train": train, "val": val, "test": test} {
		for i := 0; i < part.Len(); i++ {
			path, _, err := part.GetItem(i)
			if err != nil {
				t.Fatalf("GetItem failed: %v", err)
			}
			if owner, dup := seen[path]; dup {
				t.Fatalf("Sample %s appears in both %s and %s", path, owner, name)
			}
			seen[path] = name
		}
	}
	if len(seen) != dataset.Len() {
		t.Errorf("Union of partitions has %d samples, expected %d", len(seen), dataset.Len())
	}
}

func TestSplit3Reproducible(t *testing.T) {
	tempDir := createTestDataset(t, []string{"a"}, 12)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	first, _, _, err := dataset.Split3(0.7, 0.15, 7)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}
	second, _, _, err := dataset.Split3(0.7, 0.15, 7)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}

	for i := 0; i < first.Len(); i++ {
		pathA, _, _ := first.GetItem(i)
		pathB, _, _ := second.GetItem(i)
		if pathA != pathB {
			t.Fatalf("Seeded splits differ at index %d: %s vs %s", i, pathA, pathB)
		}
	}
}

func TestSplit3TooSmall(t *testing.T) {
	tempDir := createTestDataset(t, []string{"a"}, 2)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, _, _, err := dataset.Split3(0.7, 0.15, 1); err == nil {
		t.Error("Expected error for dataset with fewer than 3 samples")
	}
}

func TestTransformBindingIsPerView(t *testing.T) {
	tempDir := createTestDataset(t, []string{"a", "b"}, 10)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	train, val, test, err := dataset.Split3(0.7, 0.15, 5)
	if err != nil {
		t.Fatalf("Split3 failed: %v", err)
	}

	augment := transform.NewAugment(32, 1)
	eval := transform.NewEval(32)

	train.SetTransform(augment)
	val.SetTransform(eval)
	test.SetTransform(eval)

	if train.Transform() != transform.Pipeline(augment) {
		t.Error("Train view lost its transform binding")
	}
	if val.Transform() != transform.Pipeline(eval) || test.Transform() != transform.Pipeline(eval) {
		t.Error("Val/test views lost their transform bindings")
	}
	// Binding a transform to one view must not leak to siblings or the root.
	if dataset.Transform() != nil {
		t.Error("Root collection transform was mutated by a view binding")
	}

	train.SetTransform(nil)
	if val.Transform() == nil {
		t.Error("Clearing the train transform leaked into the val view")
	}
}

func TestClassDistribution(t *testing.T) {
	tempDir := createTestDataset(t, []string{"happy", "sad"}, 4)
	dataset, err := NewImageFolderDataset(tempDir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	dist := dataset.ClassDistribution()
	if dist["happy"] != 4 || dist["sad"] != 4 {
		t.Errorf("Unexpected distribution: %v", dist)
	}
}

func TestEmotionDatasetCap(t *testing.T) {
	tempDir := createTestDataset(t, []string{"angry", "happy"}, 6)

	capped, err := NewEmotionDataset(tempDir, 4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if capped.Len() != 8 {
		t.Errorf("Expected 8 samples after capping, got %d", capped.Len())
	}

	full, err := NewEmotionDataset(tempDir, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if full.Len() != 12 {
		t.Errorf("Expected 12 samples uncapped, got %d", full.Len())
	}
}

func TestEmotionDatasetRejectsUnknownClass(t *testing.T) {
	tempDir := createTestDataset(t, []string{"happy", "sad", "bored"}, 3)

	_, err := NewEmotionDataset(tempDir, 0)
	if err == nil {
		t.Fatal("Expected error for class outside the canonical emotion set")
	}
	if !strings.Contains(err.Error(), "bored") {
		t.Errorf("Error should name the offending class, got: %v", err)
	}
}
