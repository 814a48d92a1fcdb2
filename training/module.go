// Package training contains the neural network layers, losses, optimizers and
// the epoch-driven trainer used to fine-tune a pretrained classifier.
package training

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/moodlens/moodlens/tensor"
)

// Global random source for deterministic initialization
var globalRng *rand.Rand = rand.New(rand.NewSource(1))

// SetRandomSeed sets the global random seed for deterministic weight
// initialization and dropout masks.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// Module interface defines methods that all neural network layers must implement
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // Returns trainable parameters (tensors with requiresGrad=true)
	Train()                       // Sets module to training mode
	Eval()                        // Sets module to evaluation mode
	IsTraining() bool             // Returns true if in training mode
}

// Linear implements a fully connected (dense) layer: y = xW + b
type Linear struct {
	weight   *tensor.Tensor
	bias     *tensor.Tensor
	training bool
}

// NewLinear creates a new Linear layer with Xavier/Glorot uniform
// initialization: W ~ U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))).
func NewLinear(inputSize, outputSize int, bias bool) (*Linear, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("invalid linear dimensions %dx%d", inputSize, outputSize)
	}

	bound := math.Sqrt(6.0 / float64(inputSize+outputSize))
	weightData := make([]float32, inputSize*outputSize)
	for i := range weightData {
		weightData[i] = float32((globalRng.Float64()*2.0 - 1.0) * bound)
	}

	// Weight shape is [inputSize, outputSize] so the forward pass is a plain
	// input @ weight without a transpose.
	weight, err := tensor.NewTensor([]int{inputSize, outputSize}, tensor.Float32, weightData)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	linear := &Linear{
		weight:   weight,
		training: true,
	}

	if bias {
		biasT, err := tensor.Zeros([]int{outputSize}, tensor.Float32)
		if err != nil {
			return nil, fmt.Errorf("failed to create bias tensor: %v", err)
		}
		biasT.SetRequiresGrad(true)
		linear.bias = biasT
	}

	return linear, nil
}

// Forward performs the forward pass: y = xW + b
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("Linear layer expects 2D input [batch_size, input_size], got shape %v", input.Shape)
	}
	if input.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", l.weight.Shape[0], input.Shape[1])
	}

	output, err := tensor.MatMulAutograd(input, l.weight)
	if err != nil {
		return nil, fmt.Errorf("linear matmul failed: %v", err)
	}

	if l.bias != nil {
		output, err = tensor.AddAutograd(output, l.bias)
		if err != nil {
			return nil, fmt.Errorf("bias addition failed: %v", err)
		}
	}

	return output, nil
}

// Parameters returns the trainable parameters
func (l *Linear) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{l.weight}
	if l.bias != nil {
		params = append(params, l.bias)
	}
	return params
}

func (l *Linear) Train()           { l.training = true }
func (l *Linear) Eval()            { l.training = false }
func (l *Linear) IsTraining() bool { return l.training }

// InFeatures returns the layer's input width.
func (l *Linear) InFeatures() int { return l.weight.Shape[0] }

// OutFeatures returns the layer's output width.
func (l *Linear) OutFeatures() int { return l.weight.Shape[1] }

// Weight returns the weight tensor ([in, out]).
func (l *Linear) Weight() *tensor.Tensor { return l.weight }

// Bias returns the bias tensor, or nil when the layer has none.
func (l *Linear) Bias() *tensor.Tensor { return l.bias }

// LoadWeights replaces the layer's parameter data in place. Shapes must match
// the layer exactly; bias may be nil only for a bias-free layer.
func (l *Linear) LoadWeights(weight, bias []float32) error {
	if err := l.weight.SetData(weight); err != nil {
		return fmt.Errorf("failed to load weight: %v", err)
	}
	if l.bias == nil {
		if bias != nil {
			return fmt.Errorf("layer has no bias but bias data was provided")
		}
		return nil
	}
	if bias == nil {
		return fmt.Errorf("layer has a bias but no bias data was provided")
	}
	if err := l.bias.SetData(bias); err != nil {
		return fmt.Errorf("failed to load bias: %v", err)
	}
	return nil
}

// Freeze marks the layer's parameters as non-trainable.
func (l *Linear) Freeze() {
	l.weight.SetRequiresGrad(false)
	if l.bias != nil {
		l.bias.SetRequiresGrad(false)
	}
}

// ReLU implements the rectified linear activation
type ReLU struct {
	training bool
}

// NewReLU creates a new ReLU activation
func NewReLU() *ReLU {
	return &ReLU{training: true}
}

// Forward applies ReLU element-wise: max(0, x)
func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input)
}

func (r *ReLU) Parameters() []*tensor.Tensor { return nil }
func (r *ReLU) Train()                       { r.training = true }
func (r *ReLU) Eval()                        { r.training = false }
func (r *ReLU) IsTraining() bool             { return r.training }

// Dropout zeroes activations with probability p during training and rescales
// the survivors by 1/(1-p). In evaluation mode it is the identity.
type Dropout struct {
	p        float64
	training bool
}

// NewDropout creates a new Dropout layer with drop probability p in [0, 1).
func NewDropout(p float64) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", p)
	}
	return &Dropout{p: p, training: true}, nil
}

// Forward applies the dropout mask in training mode.
func (d *Dropout) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if !d.training || d.p == 0 {
		return input, nil
	}

	scale := float32(1.0 / (1.0 - d.p))
	maskData := make([]float32, input.NumElems)
	for i := range maskData {
		if globalRng.Float64() >= d.p {
			maskData[i] = scale
		}
	}
	mask, err := tensor.NewTensor(input.Shape, tensor.Float32, maskData)
	if err != nil {
		return nil, fmt.Errorf("failed to create dropout mask: %v", err)
	}

	return tensor.MulAutograd(input, mask)
}

func (d *Dropout) Parameters() []*tensor.Tensor { return nil }
func (d *Dropout) Train()                       { d.training = true }
func (d *Dropout) Eval()                        { d.training = false }
func (d *Dropout) IsTraining() bool             { return d.training }

// P returns the drop probability.
func (d *Dropout) P() float64 { return d.p }

// Flatten reshapes [batch, d1, d2, ...] input to [batch, d1*d2*...].
// The reshape is a data view outside the autograd graph, so Flatten must sit
// below the first trainable layer.
type Flatten struct {
	training bool
}

// NewFlatten creates a new Flatten layer
func NewFlatten() *Flatten {
	return &Flatten{training: true}
}

// Forward flattens all dimensions after the batch dimension
func (f *Flatten) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) < 2 {
		return nil, fmt.Errorf("Flatten expects at least 2D input, got shape %v", input.Shape)
	}
	features := 1
	for _, dim := range input.Shape[1:] {
		features *= dim
	}
	return input.Reshape([]int{input.Shape[0], features})
}

func (f *Flatten) Parameters() []*tensor.Tensor { return nil }
func (f *Flatten) Train()                       { f.training = true }
func (f *Flatten) Eval()                        { f.training = false }
func (f *Flatten) IsTraining() bool             { return f.training }

// Sequential chains modules, feeding each module's output to the next.
type Sequential struct {
	modules  []Module
	training bool
}

// NewSequential creates a new Sequential container
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules, training: true}
}

// Add appends a module to the chain.
func (s *Sequential) Add(module Module) {
	s.modules = append(s.modules, module)
}

// Modules returns the underlying module chain.
func (s *Sequential) Modules() []Module { return s.modules }

// Forward runs the input through all modules in order
func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	output := input
	for i, module := range s.modules {
		var err error
		output, err = module.Forward(output)
		if err != nil {
			return nil, fmt.Errorf("module %d forward failed: %v", i, err)
		}
	}
	return output, nil
}

// Parameters returns all trainable parameters from all modules
func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// TrainableParameters returns only the parameters that require gradients,
// which is what an optimizer should update on a partially frozen model.
func (s *Sequential) TrainableParameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, param := range s.Parameters() {
		if param.RequiresGrad() {
			params = append(params, param)
		}
	}
	return params
}

// Train sets all modules to training mode
func (s *Sequential) Train() {
	s.training = true
	for _, module := range s.modules {
		module.Train()
	}
}

// Eval sets all modules to evaluation mode
func (s *Sequential) Eval() {
	s.training = false
	for _, module := range s.modules {
		module.Eval()
	}
}

func (s *Sequential) IsTraining() bool { return s.training }
