package tensor

import (
	"fmt"
)

// reduceGradientToShape sums a gradient down to the shape of the input it
// belongs to. Needed when the forward pass broadcast a scalar or a trailing
// vector.
func reduceGradientToShape(grad *Tensor, targetShape []int) (*Tensor, error) {
	if shapesEqual(grad.Shape, targetShape) {
		return grad, nil
	}

	// Scalar input: sum everything.
	if calculateNumElements(targetShape) == 1 {
		return Sum(grad)
	}

	// Trailing vector input: sum over the leading dimension of a 2D gradient.
	if len(targetShape) == 1 && len(grad.Shape) == 2 && grad.Shape[1] == targetShape[0] {
		rows, cols := grad.Shape[0], grad.Shape[1]
		data := grad.Data.([]float32)
		out := make([]float32, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out[j] += data[i*cols+j]
			}
		}
		return NewTensor(targetShape, Float32, out)
	}

	return nil, fmt.Errorf("cannot reduce gradient of shape %v to %v", grad.Shape, targetShape)
}

// addOp records an elementwise addition for the backward pass.
type addOp struct {
	inputs []*Tensor
}

func (op *addOp) Inputs() []*Tensor { return op.inputs }

func (op *addOp) Backward(gradOut *Tensor) []*Tensor {
	// d(a + b)/da = 1, d(a + b)/db = 1; reduce where broadcasting occurred.
	gradA, err := reduceGradientToShape(gradOut, op.inputs[0].Shape)
	if err != nil {
		panic(fmt.Sprintf("add backward failed for input A: %v", err))
	}
	gradB, err := reduceGradientToShape(gradOut, op.inputs[1].Shape)
	if err != nil {
		panic(fmt.Sprintf("add backward failed for input B: %v", err))
	}
	return []*Tensor{gradA, gradB}
}

// mulOp records an elementwise multiplication for the backward pass.
type mulOp struct {
	inputs []*Tensor
}

func (op *mulOp) Inputs() []*Tensor { return op.inputs }

func (op *mulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	// d(a * b)/da = b, d(a * b)/db = a.
	gradAFull, err := Mul(gradOut, b)
	if err != nil {
		panic(fmt.Sprintf("mul backward failed for input A: %v", err))
	}
	gradA, err := reduceGradientToShape(gradAFull, a.Shape)
	if err != nil {
		panic(fmt.Sprintf("mul backward reduction failed for input A: %v", err))
	}

	gradBFull, err := Mul(gradOut, a)
	if err != nil {
		panic(fmt.Sprintf("mul backward failed for input B: %v", err))
	}
	gradB, err := reduceGradientToShape(gradBFull, b.Shape)
	if err != nil {
		panic(fmt.Sprintf("mul backward reduction failed for input B: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// matMulOp records a matrix multiplication for the backward pass.
type matMulOp struct {
	inputs []*Tensor
}

func (op *matMulOp) Inputs() []*Tensor { return op.inputs }

func (op *matMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]

	// d(A @ B)/dA = gradOut @ B^T, d(A @ B)/dB = A^T @ gradOut.
	bT, err := Transpose(b)
	if err != nil {
		panic(fmt.Sprintf("matmul backward failed to transpose B: %v", err))
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		panic(fmt.Sprintf("matmul backward failed for input A: %v", err))
	}

	aT, err := Transpose(a)
	if err != nil {
		panic(fmt.Sprintf("matmul backward failed to transpose A: %v", err))
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		panic(fmt.Sprintf("matmul backward failed for input B: %v", err))
	}

	return []*Tensor{gradA, gradB}
}

// reluOp records a ReLU activation for the backward pass.
type reluOp struct {
	inputs []*Tensor
}

func (op *reluOp) Inputs() []*Tensor { return op.inputs }

func (op *reluOp) Backward(gradOut *Tensor) []*Tensor {
	input := op.inputs[0]
	inputData := input.Data.([]float32)
	gradData := gradOut.Data.([]float32)

	out := make([]float32, len(gradData))
	for i := range out {
		if inputData[i] > 0 {
			out[i] = gradData[i]
		}
	}

	grad, err := NewTensor(input.Shape, Float32, out)
	if err != nil {
		panic(fmt.Sprintf("relu backward failed: %v", err))
	}
	return []*Tensor{grad}
}

// WithOperation registers op as the creator of result, marking result as
// requiring gradients when any of the operation's inputs participates in the
// graph. It lets other packages define custom differentiable operations.
func WithOperation(result *Tensor, op Operation) *Tensor {
	return attach(result, op, op.Inputs()...)
}

func attach(result *Tensor, op Operation, inputs ...*Tensor) *Tensor {
	requires := false
	for _, in := range inputs {
		if in.requiresGrad || in.creator != nil {
			requires = true
			break
		}
	}
	if requires {
		result.creator = op
		result.requiresGrad = true
	}
	return result
}

// AddAutograd performs addition with automatic differentiation.
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := Add(a, b)
	if err != nil {
		return nil, err
	}
	return attach(result, &addOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// MulAutograd performs elementwise multiplication with automatic differentiation.
func MulAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := Mul(a, b)
	if err != nil {
		return nil, err
	}
	return attach(result, &mulOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// MatMulAutograd performs matrix multiplication with automatic differentiation.
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	result, err := MatMul(a, b)
	if err != nil {
		return nil, err
	}
	return attach(result, &matMulOp{inputs: []*Tensor{a, b}}, a, b), nil
}

// ReLUAutograd performs ReLU activation with automatic differentiation.
func ReLUAutograd(a *Tensor) (*Tensor, error) {
	result, err := ReLU(a)
	if err != nil {
		return nil, err
	}
	return attach(result, &reluOp{inputs: []*Tensor{a}}, a), nil
}
