package checkpoints

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleCheckpoint() *Checkpoint {
	return &Checkpoint{
		Architecture: []LayerSpec{
			{Type: LayerFlatten},
			{Type: LayerLinear, Name: "fc1", InFeatures: 4, OutFeatures: 3, Bias: true},
			{Type: LayerReLU},
			{Type: LayerDropout, Rate: 0.5},
			{Type: LayerLinear, Name: "fc2", InFeatures: 3, OutFeatures: 2, Bias: true},
		},
		Weights: []WeightTensor{
			{Name: "fc1.weight", Shape: []int{4, 3}, Data: make([]float32, 12), Layer: "fc1", Type: "weight"},
			{Name: "fc1.bias", Shape: []int{3}, Data: make([]float32, 3), Layer: "fc1", Type: "bias"},
			{Name: "fc2.weight", Shape: []int{3, 2}, Data: make([]float32, 6), Layer: "fc2", Type: "weight"},
			{Name: "fc2.bias", Shape: []int{2}, Data: make([]float32, 2), Layer: "fc2", Type: "bias"},
		},
		Metadata: CheckpointMetadata{
			Version:   "1.0.0",
			Framework: "moodlens",
			CreatedAt: time.Now().UTC(),
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")

	original := sampleCheckpoint()
	original.Weights[0].Data[5] = 1.25

	if err := Save(original, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.Architecture) != len(original.Architecture) {
		t.Fatalf("Expected %d layers, got %d", len(original.Architecture), len(loaded.Architecture))
	}
	if loaded.Architecture[1].Name != "fc1" || loaded.Architecture[1].OutFeatures != 3 {
		t.Errorf("Layer spec mismatch: %+v", loaded.Architecture[1])
	}
	if loaded.Weights[0].Data[5] != 1.25 {
		t.Errorf("Weight data mismatch: got %v", loaded.Weights[0].Data[5])
	}
	if loaded.Metadata.Framework != "moodlens" {
		t.Errorf("Metadata mismatch: %+v", loaded.Metadata)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("Expected error for missing checkpoint")
		}
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Error("Expected error for malformed checkpoint")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		if err := sampleCheckpoint().Validate(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})

	t.Run("EmptyArchitecture", func(t *testing.T) {
		cp := &Checkpoint{}
		if err := cp.Validate(); err == nil {
			t.Error("Expected error for empty architecture")
		}
	})

	t.Run("LinearWithoutDimensions", func(t *testing.T) {
		cp := sampleCheckpoint()
		cp.Architecture[1].InFeatures = 0
		if err := cp.Validate(); err == nil {
			t.Error("Expected error for linear layer without dimensions")
		}
	})

	t.Run("UnknownLayerType", func(t *testing.T) {
		cp := sampleCheckpoint()
		cp.Architecture[2].Type = "conv2d"
		if err := cp.Validate(); err == nil {
			t.Error("Expected error for unknown layer type")
		}
	})

	t.Run("ShapeDataMismatch", func(t *testing.T) {
		cp := sampleCheckpoint()
		cp.Weights[0].Data = cp.Weights[0].Data[:5]
		if err := cp.Validate(); err == nil {
			t.Error("Expected error for shape/data mismatch")
		}
	})

	t.Run("DropoutRateOutOfRange", func(t *testing.T) {
		cp := sampleCheckpoint()
		cp.Architecture[3].Rate = 1.0
		if err := cp.Validate(); err == nil {
			t.Error("Expected error for dropout rate of 1.0")
		}
	})
}

func TestFindWeight(t *testing.T) {
	cp := sampleCheckpoint()

	w := cp.FindWeight("fc2", "bias")
	if w == nil {
		t.Fatal("Expected to find fc2 bias")
	}
	if w.Name != "fc2.bias" {
		t.Errorf("Found wrong weight: %s", w.Name)
	}

	if cp.FindWeight("fc3", "weight") != nil {
		t.Error("Expected nil for unknown layer")
	}
}
