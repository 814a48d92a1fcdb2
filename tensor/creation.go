package tensor

import (
	"fmt"
)

// NewTensor creates a tensor with the given shape and data. If data is nil,
// the tensor is zero-initialized.
func NewTensor(shape []int, dtype DType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	t := &Tensor{
		Shape:    append([]int{}, shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		NumElems: calculateNumElements(shape),
	}

	if data == nil {
		switch dtype {
		case Float32:
			t.Data = make([]float32, t.NumElems)
		case Int32:
			t.Data = make([]int32, t.NumElems)
		default:
			return nil, fmt.Errorf("unsupported dtype: %s", dtype)
		}
		return t, nil
	}

	if err := t.setData(data); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tensor) setData(data interface{}) error {
	switch t.DType {
	case Float32:
		values, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("expected []float32 for Float32 tensor, got %T", data)
		}
		if len(values) != t.NumElems {
			return fmt.Errorf("data length %d does not match shape %v (%d elements)", len(values), t.Shape, t.NumElems)
		}
		t.Data = values
	case Int32:
		values, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("expected []int32 for Int32 tensor, got %T", data)
		}
		if len(values) != t.NumElems {
			return fmt.Errorf("data length %d does not match shape %v (%d elements)", len(values), t.Shape, t.NumElems)
		}
		t.Data = values
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

// SetData overwrites the tensor's backing data in place. The replacement must
// match the tensor's dtype and element count.
func (t *Tensor) SetData(data interface{}) error {
	switch t.DType {
	case Float32:
		values, ok := data.([]float32)
		if !ok {
			return fmt.Errorf("expected []float32 for Float32 tensor, got %T", data)
		}
		dst := t.Data.([]float32)
		if len(values) != len(dst) {
			return fmt.Errorf("data length %d does not match tensor with %d elements", len(values), len(dst))
		}
		copy(dst, values)
	case Int32:
		values, ok := data.([]int32)
		if !ok {
			return fmt.Errorf("expected []int32 for Int32 tensor, got %T", data)
		}
		dst := t.Data.([]int32)
		if len(values) != len(dst) {
			return fmt.Errorf("data length %d does not match tensor with %d elements", len(values), len(dst))
		}
		copy(dst, values)
	default:
		return fmt.Errorf("unsupported dtype: %s", t.DType)
	}
	return nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType) (*Tensor, error) {
	return NewTensor(shape, dtype, nil)
}

// Ones creates a tensor filled with ones.
func Ones(shape []int, dtype DType) (*Tensor, error) {
	return Full(shape, 1, dtype)
}

// Full creates a tensor filled with the given value.
func Full(shape []int, value float32, dtype DType) (*Tensor, error) {
	t, err := NewTensor(shape, dtype, nil)
	if err != nil {
		return nil, err
	}

	switch dtype {
	case Float32:
		data := t.Data.([]float32)
		for i := range data {
			data[i] = value
		}
	case Int32:
		data := t.Data.([]int32)
		for i := range data {
			data[i] = int32(value)
		}
	}
	return t, nil
}

// FromScalar creates a single-element Float32 tensor. It is the common way to
// feed scalar hyperparameters into elementwise operations.
func FromScalar(value float64) *Tensor {
	t, err := NewTensor([]int{1}, Float32, []float32{float32(value)})
	if err != nil {
		// A [1] Float32 tensor cannot fail validation.
		panic(fmt.Sprintf("FromScalar: %v", err))
	}
	return t
}
