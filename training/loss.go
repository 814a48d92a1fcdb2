package training

import (
	"fmt"
	"math"

	"github.com/moodlens/moodlens/tensor"
)

// crossEntropyOp is the autograd node for the fused softmax + negative
// log-likelihood loss. Keeping the softmax probabilities from the forward pass
// makes the backward pass a single subtraction.
type crossEntropyOp struct {
	logits *tensor.Tensor
	labels []int32
	probs  []float32 // softmax of logits, row-major [batch, classes]
}

func (op *crossEntropyOp) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{op.logits}
}

func (op *crossEntropyOp) Backward(gradOut *tensor.Tensor) []*tensor.Tensor {
	scale := float32(1.0)
	if s, err := gradOut.Item(); err == nil {
		scale = float32(s)
	}

	batch := op.logits.Shape[0]
	classes := op.logits.Shape[1]

	// dL/dlogits = (softmax - onehot) / batch
	gradData := make([]float32, batch*classes)
	for i := 0; i < batch; i++ {
		for j := 0; j < classes; j++ {
			g := op.probs[i*classes+j]
			if int32(j) == op.labels[i] {
				g -= 1.0
			}
			gradData[i*classes+j] = g * scale / float32(batch)
		}
	}

	grad, err := tensor.NewTensor(op.logits.Shape, tensor.Float32, gradData)
	if err != nil {
		return []*tensor.Tensor{nil}
	}
	return []*tensor.Tensor{grad}
}

// CrossEntropyLoss computes the mean cross-entropy between logits [batch,
// classes] and integer class labels [batch]. The returned scalar participates
// in the autograd graph, so Backward on it reaches the model parameters.
func CrossEntropyLoss(logits, labels *tensor.Tensor) (*tensor.Tensor, error) {
	if len(logits.Shape) != 2 {
		return nil, fmt.Errorf("cross entropy expects 2D logits [batch, classes], got shape %v", logits.Shape)
	}
	if logits.DType != tensor.Float32 {
		return nil, fmt.Errorf("cross entropy expects Float32 logits, got %s", logits.DType)
	}
	if len(labels.Shape) != 1 || labels.Shape[0] != logits.Shape[0] {
		return nil, fmt.Errorf("labels shape %v does not match logits batch %d", labels.Shape, logits.Shape[0])
	}

	labelData, err := labels.GetInt32Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %v", err)
	}
	logitData, err := logits.GetFloat32Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read logits: %v", err)
	}

	batch := logits.Shape[0]
	classes := logits.Shape[1]

	probs := make([]float32, batch*classes)
	totalLoss := 0.0
	for i := 0; i < batch; i++ {
		label := labelData[i]
		if label < 0 || int(label) >= classes {
			return nil, fmt.Errorf("label %d out of range for %d classes", label, classes)
		}

		row := logitData[i*classes : (i+1)*classes]

		// Max-shifted softmax for numerical stability.
		maxLogit := row[0]
		for _, v := range row[1:] {
			if v > maxLogit {
				maxLogit = v
			}
		}
		sum := 0.0
		for j, v := range row {
			e := math.Exp(float64(v - maxLogit))
			probs[i*classes+j] = float32(e)
			sum += e
		}
		for j := range row {
			probs[i*classes+j] /= float32(sum)
		}

		totalLoss += -math.Log(float64(probs[i*classes+int(label)]) + 1e-12)
	}

	loss, err := tensor.NewTensor([]int{1}, tensor.Float32, []float32{float32(totalLoss / float64(batch))})
	if err != nil {
		return nil, fmt.Errorf("failed to create loss tensor: %v", err)
	}

	op := &crossEntropyOp{logits: logits, labels: labelData, probs: probs}
	return tensor.WithOperation(loss, op), nil
}

// Argmax returns the index of the largest logit per row of a [batch, classes]
// tensor.
func Argmax(logits *tensor.Tensor) ([]int, error) {
	if len(logits.Shape) != 2 {
		return nil, fmt.Errorf("argmax expects 2D logits, got shape %v", logits.Shape)
	}
	data, err := logits.GetFloat32Data()
	if err != nil {
		return nil, err
	}

	batch := logits.Shape[0]
	classes := logits.Shape[1]
	out := make([]int, batch)
	for i := 0; i < batch; i++ {
		best := 0
		bestVal := data[i*classes]
		for j := 1; j < classes; j++ {
			if v := data[i*classes+j]; v > bestVal {
				bestVal = v
				best = j
			}
		}
		out[i] = best
	}
	return out, nil
}
