package tensor

import (
	"fmt"
)

// Reshape returns a view with a new shape over the same backing data. The
// result does not participate in the autograd graph; callers reshape inputs,
// not intermediate values.
func (t *Tensor) Reshape(newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor with %d elements to shape %v", t.NumElems, newShape)
	}

	return &Tensor{
		Shape:    append([]int{}, newShape...),
		Strides:  calculateStrides(newShape),
		DType:    t.DType,
		Data:     t.Data,
		NumElems: t.NumElems,
	}, nil
}

// Clone returns a deep copy of the tensor's shape and data. Autograd state is
// not carried over.
func (t *Tensor) Clone() (*Tensor, error) {
	switch t.DType {
	case Float32:
		src := t.Data.([]float32)
		dst := make([]float32, len(src))
		copy(dst, src)
		return NewTensor(t.Shape, Float32, dst)
	case Int32:
		src := t.Data.([]int32)
		dst := make([]int32, len(src))
		copy(dst, src)
		return NewTensor(t.Shape, Int32, dst)
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

// Item extracts the value of a single-element tensor as float64.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item requires a single-element tensor, got shape %v", t.Shape)
	}
	switch t.DType {
	case Float32:
		return float64(t.Data.([]float32)[0]), nil
	case Int32:
		return float64(t.Data.([]int32)[0]), nil
	default:
		return 0, fmt.Errorf("unsupported dtype: %s", t.DType)
	}
}

// GetFloat32Data returns the backing slice of a Float32 tensor.
func (t *Tensor) GetFloat32Data() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor is %s, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

// GetInt32Data returns the backing slice of an Int32 tensor.
func (t *Tensor) GetInt32Data() ([]int32, error) {
	if t.DType != Int32 {
		return nil, fmt.Errorf("tensor is %s, not Int32", t.DType)
	}
	return t.Data.([]int32), nil
}

// ZeroGrad clears the accumulated gradients of the given tensors.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		t.grad = nil
	}
}
