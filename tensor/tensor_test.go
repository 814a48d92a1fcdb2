package tensor

import (
	"math"
	"testing"
)

func floatsClose(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestNewTensor(t *testing.T) {
	t.Run("ZeroInitialized", func(t *testing.T) {
		tensor, err := NewTensor([]int{2, 3}, Float32, nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if tensor.NumElems != 6 {
			t.Errorf("Expected 6 elements, got %d", tensor.NumElems)
		}
		data, err := tensor.GetFloat32Data()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		for i, v := range data {
			if v != 0 {
				t.Errorf("Element %d not zero-initialized: %f", i, v)
			}
		}
	})

	t.Run("WithData", func(t *testing.T) {
		tensor, err := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data := tensor.Data.([]float32)
		if data[3] != 4 {
			t.Errorf("Expected 4 at index 3, got %f", data[3])
		}
	})

	t.Run("InvalidShape", func(t *testing.T) {
		if _, err := NewTensor([]int{2, 0}, Float32, nil); err == nil {
			t.Error("Expected error for zero-sized dimension")
		}
	})

	t.Run("DataLengthMismatch", func(t *testing.T) {
		if _, err := NewTensor([]int{2, 2}, Float32, []float32{1, 2}); err == nil {
			t.Error("Expected error for data length mismatch")
		}
	})

	t.Run("DataTypeMismatch", func(t *testing.T) {
		if _, err := NewTensor([]int{2}, Int32, []float32{1, 2}); err == nil {
			t.Error("Expected error for dtype mismatch")
		}
	})
}

func TestStrides(t *testing.T) {
	tensor, err := NewTensor([]int{2, 3, 4}, Float32, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []int{12, 4, 1}
	for i, s := range tensor.Strides {
		if s != expected[i] {
			t.Errorf("Stride %d: expected %d, got %d", i, expected[i], s)
		}
	}
}

func TestElementwiseOps(t *testing.T) {
	a, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
	b, _ := NewTensor([]int{2, 2}, Float32, []float32{5, 6, 7, 8})

	t.Run("Add", func(t *testing.T) {
		result, err := Add(a, b)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data := result.Data.([]float32)
		expected := []float32{6, 8, 10, 12}
		for i := range expected {
			if !floatsClose(data[i], expected[i]) {
				t.Errorf("Add element %d: expected %f, got %f", i, expected[i], data[i])
			}
		}
	})

	t.Run("Sub", func(t *testing.T) {
		result, err := Sub(b, a)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data := result.Data.([]float32)
		for i := range data {
			if !floatsClose(data[i], 4) {
				t.Errorf("Sub element %d: expected 4, got %f", i, data[i])
			}
		}
	})

	t.Run("MulScalarBroadcast", func(t *testing.T) {
		result, err := Mul(a, FromScalar(2))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data := result.Data.([]float32)
		expected := []float32{2, 4, 6, 8}
		for i := range expected {
			if !floatsClose(data[i], expected[i]) {
				t.Errorf("Mul element %d: expected %f, got %f", i, expected[i], data[i])
			}
		}
	})

	t.Run("AddTrailingVector", func(t *testing.T) {
		bias, _ := NewTensor([]int{2}, Float32, []float32{10, 20})
		result, err := Add(a, bias)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		data := result.Data.([]float32)
		expected := []float32{11, 22, 13, 24}
		for i := range expected {
			if !floatsClose(data[i], expected[i]) {
				t.Errorf("Broadcast add element %d: expected %f, got %f", i, expected[i], data[i])
			}
		}
	})

	t.Run("IncompatibleShapes", func(t *testing.T) {
		c, _ := NewTensor([]int{3}, Float32, []float32{1, 2, 3})
		if _, err := Add(a, c); err == nil {
			t.Error("Expected error for incompatible shapes")
		}
	})
}

func TestMatMul(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	b, _ := NewTensor([]int{3, 2}, Float32, []float32{7, 8, 9, 10, 11, 12})

	result, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Shape[0] != 2 || result.Shape[1] != 2 {
		t.Fatalf("Expected shape [2 2], got %v", result.Shape)
	}

	data := result.Data.([]float32)
	expected := []float32{58, 64, 139, 154}
	for i := range expected {
		if !floatsClose(data[i], expected[i]) {
			t.Errorf("MatMul element %d: expected %f, got %f", i, expected[i], data[i])
		}
	}

	t.Run("DimensionMismatch", func(t *testing.T) {
		c, _ := NewTensor([]int{2, 2}, Float32, []float32{1, 2, 3, 4})
		if _, err := MatMul(a, c); err == nil {
			t.Error("Expected error for incompatible matmul dimensions")
		}
	})
}

func TestTranspose(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})
	result, err := Transpose(a)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Shape[0] != 3 || result.Shape[1] != 2 {
		t.Fatalf("Expected shape [3 2], got %v", result.Shape)
	}
	data := result.Data.([]float32)
	expected := []float32{1, 4, 2, 5, 3, 6}
	for i := range expected {
		if !floatsClose(data[i], expected[i]) {
			t.Errorf("Transpose element %d: expected %f, got %f", i, expected[i], data[i])
		}
	}
}

func TestReshape(t *testing.T) {
	a, _ := NewTensor([]int{2, 3}, Float32, []float32{1, 2, 3, 4, 5, 6})

	reshaped, err := a.Reshape([]int{3, 2})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reshaped.Shape[0] != 3 || reshaped.Shape[1] != 2 {
		t.Errorf("Expected shape [3 2], got %v", reshaped.Shape)
	}

	// Reshape shares backing data.
	reshaped.Data.([]float32)[0] = 99
	if a.Data.([]float32)[0] != 99 {
		t.Error("Reshape should share backing data with the original")
	}

	if _, err := a.Reshape([]int{4, 2}); err == nil {
		t.Error("Expected error for element count mismatch")
	}
}

func TestClone(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float32, []float32{1, 2})
	clone, err := a.Clone()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	clone.Data.([]float32)[0] = 42
	if a.Data.([]float32)[0] != 1 {
		t.Error("Clone should not share backing data")
	}
}

func TestItem(t *testing.T) {
	scalar := FromScalar(3.5)
	v, err := scalar.Item()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !floatsClose(float32(v), 3.5) {
		t.Errorf("Expected 3.5, got %f", v)
	}

	a, _ := NewTensor([]int{2}, Float32, []float32{1, 2})
	if _, err := a.Item(); err == nil {
		t.Error("Expected error for non-scalar Item")
	}
}

func TestSetData(t *testing.T) {
	a, _ := NewTensor([]int{2}, Float32, []float32{1, 2})
	if err := a.SetData([]float32{3, 4}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a.Data.([]float32)[1] != 4 {
		t.Error("SetData did not update backing data")
	}
	if err := a.SetData([]float32{1}); err == nil {
		t.Error("Expected error for length mismatch")
	}
	if err := a.SetData([]int32{1, 2}); err == nil {
		t.Error("Expected error for dtype mismatch")
	}
}
