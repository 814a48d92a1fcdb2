package tensor

import (
	"fmt"
)

// MatMul multiplies two 2D Float32 tensors: [m, k] x [k, n] -> [m, n].
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.DType != Float32 || b.DType != Float32 {
		return nil, fmt.Errorf("matmul only supports Float32 tensors")
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires 2D tensors, got shapes %v and %v", a.Shape, b.Shape)
	}

	m, k := a.Shape[0], a.Shape[1]
	k2, n := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", m, k, k2, n)
	}

	dataA := a.Data.([]float32)
	dataB := b.Data.([]float32)
	out := make([]float32, m*n)

	for i := 0; i < m; i++ {
		rowA := dataA[i*k : (i+1)*k]
		rowOut := out[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			v := rowA[p]
			if v == 0 {
				continue
			}
			rowB := dataB[p*n : (p+1)*n]
			for j := 0; j < n; j++ {
				rowOut[j] += v * rowB[j]
			}
		}
	}

	return NewTensor([]int{m, n}, Float32, out)
}

// Transpose swaps the two axes of a 2D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("transpose only supports Float32 tensors")
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a 2D tensor, got shape %v", t.Shape)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	data := t.Data.([]float32)
	out := make([]float32, len(data))

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = data[i*cols+j]
		}
	}

	return NewTensor([]int{cols, rows}, Float32, out)
}
