package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// Operation is a node in the autograd graph. Backward receives the gradient
// of the loss with respect to the operation's output and returns one gradient
// per input, in input order.
type Operation interface {
	Inputs() []*Tensor
	Backward(gradOut *Tensor) []*Tensor
}

// Tensor is a dense CPU tensor. Data holds either []float32 or []int32
// depending on DType.
type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, elements=%d)", t.Shape, t.DType, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// Backward runs reverse-mode differentiation from t, which must be a scalar
// (typically a loss value). Gradients accumulate into the grad field of every
// tensor on the path that requires them.
func (t *Tensor) Backward() error {
	if t.DType != Float32 {
		return fmt.Errorf("backward requires a Float32 tensor, got %s", t.DType)
	}
	if t.NumElems != 1 {
		return fmt.Errorf("backward requires a scalar tensor, got shape %v", t.Shape)
	}

	seed, err := Ones(t.Shape, Float32)
	if err != nil {
		return fmt.Errorf("failed to create seed gradient: %v", err)
	}
	t.grad = seed

	// Topological order over the creator graph, outputs before inputs.
	var order []*Tensor
	visited := make(map[*Tensor]bool)

	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] || node.creator == nil {
			return
		}
		visited[node] = true
		for _, in := range node.creator.Inputs() {
			visit(in)
		}
		order = append(order, node)
	}
	visit(t)

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.grad == nil {
			continue
		}

		grads := node.creator.Backward(node.grad)
		inputs := node.creator.Inputs()
		if len(grads) != len(inputs) {
			return fmt.Errorf("operation returned %d gradients for %d inputs", len(grads), len(inputs))
		}

		for j, in := range inputs {
			if grads[j] == nil {
				continue
			}
			if !in.requiresGrad && in.creator == nil {
				continue
			}
			if in.grad == nil {
				in.grad = grads[j]
				continue
			}
			sum, err := Add(in.grad, grads[j])
			if err != nil {
				return fmt.Errorf("gradient accumulation failed: %v", err)
			}
			in.grad = sum
		}
	}

	return nil
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
