package training

import (
	"math"
	"testing"

	"github.com/moodlens/moodlens/tensor"
)

func TestCrossEntropyUniformLogits(t *testing.T) {
	// Equal logits give uniform softmax, so the loss is ln(classes).
	logits, err := tensor.Zeros([]int{2, 4}, tensor.Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	labels, err := tensor.NewTensor([]int{2}, tensor.Int32, []int32{0, 3})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	loss, err := CrossEntropyLoss(logits, labels)
	if err != nil {
		t.Fatalf("CrossEntropyLoss failed: %v", err)
	}

	value, err := loss.Item()
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	expected := math.Log(4)
	if math.Abs(value-expected) > 1e-5 {
		t.Errorf("Expected loss %v, got %v", expected, value)
	}
}

func TestCrossEntropyConfidentPrediction(t *testing.T) {
	logits, err := tensor.NewTensor([]int{1, 3}, tensor.Float32, []float32{20, 0, 0})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	labels, err := tensor.NewTensor([]int{1}, tensor.Int32, []int32{0})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	loss, err := CrossEntropyLoss(logits, labels)
	if err != nil {
		t.Fatalf("CrossEntropyLoss failed: %v", err)
	}
	value, err := loss.Item()
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if value > 1e-4 {
		t.Errorf("Expected near-zero loss for a confident correct prediction, got %v", value)
	}
}

func TestCrossEntropyGradient(t *testing.T) {
	// Single sample, two classes, zero logits: softmax is [0.5, 0.5] and the
	// gradient is (softmax - onehot) = [-0.5, 0.5].
	logits, err := tensor.Zeros([]int{1, 2}, tensor.Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	logits.SetRequiresGrad(true)

	labels, err := tensor.NewTensor([]int{1}, tensor.Int32, []int32{0})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	loss, err := CrossEntropyLoss(logits, labels)
	if err != nil {
		t.Fatalf("CrossEntropyLoss failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	grad := logits.Grad()
	if grad == nil {
		t.Fatal("Expected a gradient on the logits")
	}
	data, err := grad.GetFloat32Data()
	if err != nil {
		t.Fatalf("GetFloat32Data failed: %v", err)
	}
	expected := []float32{-0.5, 0.5}
	for i, want := range expected {
		if math.Abs(float64(data[i]-want)) > 1e-5 {
			t.Errorf("Gradient[%d]: expected %v, got %v", i, want, data[i])
		}
	}
}

func TestCrossEntropyBatchGradientScaling(t *testing.T) {
	// The gradient is divided by the batch size.
	logits, err := tensor.Zeros([]int{4, 2}, tensor.Float32)
	if err != nil {
		t.Fatalf("Zeros failed: %v", err)
	}
	logits.SetRequiresGrad(true)

	labels, err := tensor.NewTensor([]int{4}, tensor.Int32, []int32{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	loss, err := CrossEntropyLoss(logits, labels)
	if err != nil {
		t.Fatalf("CrossEntropyLoss failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	data, err := logits.Grad().GetFloat32Data()
	if err != nil {
		t.Fatalf("GetFloat32Data failed: %v", err)
	}
	// Per sample: (0.5 - 1)/4 = -0.125 for the true class.
	if math.Abs(float64(data[0]+0.125)) > 1e-5 {
		t.Errorf("Expected gradient -0.125 for true class, got %v", data[0])
	}
}

func TestCrossEntropyValidation(t *testing.T) {
	logits, _ := tensor.Zeros([]int{2, 3}, tensor.Float32)

	t.Run("LabelOutOfRange", func(t *testing.T) {
		labels, _ := tensor.NewTensor([]int{2}, tensor.Int32, []int32{0, 3})
		if _, err := CrossEntropyLoss(logits, labels); err == nil {
			t.Error("Expected error for out-of-range label")
		}
	})

	t.Run("BatchMismatch", func(t *testing.T) {
		labels, _ := tensor.NewTensor([]int{3}, tensor.Int32, []int32{0, 1, 2})
		if _, err := CrossEntropyLoss(logits, labels); err == nil {
			t.Error("Expected error for mismatched batch sizes")
		}
	})

	t.Run("NonMatrixLogits", func(t *testing.T) {
		bad, _ := tensor.Zeros([]int{6}, tensor.Float32)
		labels, _ := tensor.NewTensor([]int{2}, tensor.Int32, []int32{0, 1})
		if _, err := CrossEntropyLoss(bad, labels); err == nil {
			t.Error("Expected error for 1D logits")
		}
	})
}

func TestArgmax(t *testing.T) {
	logits, err := tensor.NewTensor([]int{3, 3}, tensor.Float32, []float32{
		1, 5, 2,
		9, 0, 0,
		-3, -1, -2,
	})
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}

	got, err := Argmax(logits)
	if err != nil {
		t.Fatalf("Argmax failed: %v", err)
	}
	expected := []int{1, 0, 1}
	for i, want := range expected {
		if got[i] != want {
			t.Errorf("Argmax[%d]: expected %d, got %d", i, want, got[i])
		}
	}
}
