package tensor

import (
	"fmt"
	"math"
)

// broadcastKind describes the limited broadcasting the elementwise operations
// support: identical shapes, a scalar on either side, or a trailing vector
// added to each row of a 2D tensor (the bias case).
type broadcastKind int

const (
	broadcastNone broadcastKind = iota
	broadcastScalarLeft
	broadcastScalarRight
	broadcastTrailingRight
)

func classifyShapes(a, b *Tensor) (broadcastKind, []int, error) {
	if shapesEqual(a.Shape, b.Shape) {
		return broadcastNone, a.Shape, nil
	}
	if b.NumElems == 1 {
		return broadcastScalarRight, a.Shape, nil
	}
	if a.NumElems == 1 {
		return broadcastScalarLeft, b.Shape, nil
	}
	if len(b.Shape) == 1 && b.Shape[0] == a.Shape[len(a.Shape)-1] {
		return broadcastTrailingRight, a.Shape, nil
	}
	return broadcastNone, nil, fmt.Errorf("incompatible shapes: %v and %v", a.Shape, b.Shape)
}

func elementwise(a, b *Tensor, op func(x, y float32) float32, name string) (*Tensor, error) {
	if a.DType != b.DType {
		return nil, fmt.Errorf("%s requires matching dtypes, got %s and %s", name, a.DType, b.DType)
	}

	kind, outShape, err := classifyShapes(a, b)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %v", name, err)
	}

	if a.DType == Int32 {
		if kind != broadcastNone {
			return nil, fmt.Errorf("%s does not support broadcasting for Int32 tensors", name)
		}
		dataA := a.Data.([]int32)
		dataB := b.Data.([]int32)
		out := make([]int32, len(dataA))
		for i := range dataA {
			out[i] = int32(op(float32(dataA[i]), float32(dataB[i])))
		}
		return NewTensor(outShape, Int32, out)
	}

	dataA := a.Data.([]float32)
	dataB := b.Data.([]float32)
	out := make([]float32, calculateNumElements(outShape))

	switch kind {
	case broadcastNone:
		for i := range out {
			out[i] = op(dataA[i], dataB[i])
		}
	case broadcastScalarRight:
		s := dataB[0]
		for i := range out {
			out[i] = op(dataA[i], s)
		}
	case broadcastScalarLeft:
		s := dataA[0]
		for i := range out {
			out[i] = op(s, dataB[i])
		}
	case broadcastTrailingRight:
		width := b.Shape[0]
		for i := range out {
			out[i] = op(dataA[i], dataB[i%width])
		}
	}

	return NewTensor(outShape, Float32, out)
}

// Add computes a + b elementwise.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, func(x, y float32) float32 { return x + y }, "add")
}

// Sub computes a - b elementwise.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, func(x, y float32) float32 { return x - y }, "sub")
}

// Mul computes a * b elementwise.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, func(x, y float32) float32 { return x * y }, "mul")
}

// Div computes a / b elementwise.
func Div(a, b *Tensor) (*Tensor, error) {
	return elementwise(a, b, func(x, y float32) float32 { return x / y }, "div")
}

// ReLU computes max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("relu only supports Float32 tensors, got %s", t.DType)
	}

	data := t.Data.([]float32)
	out := make([]float32, len(data))
	for i, v := range data {
		if v > 0 {
			out[i] = v
		}
	}
	return NewTensor(t.Shape, Float32, out)
}

// Sqrt computes the elementwise square root.
func Sqrt(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("sqrt only supports Float32 tensors, got %s", t.DType)
	}

	data := t.Data.([]float32)
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(math.Sqrt(float64(v)))
	}
	return NewTensor(t.Shape, Float32, out)
}

// Sum reduces the tensor to a single-element Float32 tensor.
func Sum(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("sum only supports Float32 tensors, got %s", t.DType)
	}

	data := t.Data.([]float32)
	var sum float32
	for _, v := range data {
		sum += v
	}
	return NewTensor([]int{1}, Float32, []float32{sum})
}
