package training

import (
	"fmt"
	"time"

	"github.com/moodlens/moodlens/checkpoints"
)

// BuildPretrained rebuilds the network stored in a pretrained checkpoint and
// adapts it for fine-tuning on numClasses classes: body layers are loaded and
// frozen, any auxiliary head is dropped, and the final classifier layer is
// replaced with a freshly initialized trainable Linear sized to numClasses.
// Any load or decode failure is fatal and not retried.
func BuildPretrained(checkpointPath string, numClasses int) (*Sequential, error) {
	if numClasses <= 0 {
		return nil, fmt.Errorf("numClasses must be positive, got %d", numClasses)
	}

	checkpoint, err := checkpoints.Load(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pretrained checkpoint: %w", err)
	}

	headIndex := classifierHeadIndex(checkpoint)
	if headIndex < 0 {
		return nil, fmt.Errorf("checkpoint %s has no linear classifier layer", checkpointPath)
	}

	model := NewSequential()
	for i, spec := range checkpoint.Architecture {
		if spec.Aux {
			continue
		}

		switch spec.Type {
		case checkpoints.LayerFlatten:
			model.Add(NewFlatten())

		case checkpoints.LayerReLU:
			model.Add(NewReLU())

		case checkpoints.LayerDropout:
			dropout, err := NewDropout(spec.Rate)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			model.Add(dropout)

		case checkpoints.LayerLinear:
			if i == headIndex {
				head, err := NewLinear(spec.InFeatures, numClasses, true)
				if err != nil {
					return nil, fmt.Errorf("failed to build classifier head: %w", err)
				}
				model.Add(head)
				continue
			}

			layer, err := NewLinear(spec.InFeatures, spec.OutFeatures, spec.Bias)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			if err := loadLinearWeights(layer, checkpoint, spec); err != nil {
				return nil, fmt.Errorf("layer %d (%s): %w", i, spec.Name, err)
			}
			layer.Freeze()
			model.Add(layer)

		default:
			return nil, fmt.Errorf("layer %d: unsupported layer type %q", i, spec.Type)
		}
	}

	return model, nil
}

// LoadModel rebuilds a saved model exactly as stored: all layers, all
// weights, nothing frozen and nothing replaced. It returns the class names
// recorded at export time, which may be empty for hand-written checkpoints.
func LoadModel(checkpointPath string) (*Sequential, []string, error) {
	checkpoint, err := checkpoints.Load(checkpointPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model checkpoint: %w", err)
	}

	model := NewSequential()
	for i, spec := range checkpoint.Architecture {
		switch spec.Type {
		case checkpoints.LayerFlatten:
			model.Add(NewFlatten())

		case checkpoints.LayerReLU:
			model.Add(NewReLU())

		case checkpoints.LayerDropout:
			dropout, err := NewDropout(spec.Rate)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %d: %w", i, err)
			}
			model.Add(dropout)

		case checkpoints.LayerLinear:
			layer, err := NewLinear(spec.InFeatures, spec.OutFeatures, spec.Bias)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %d: %w", i, err)
			}
			if err := loadLinearWeights(layer, checkpoint, spec); err != nil {
				return nil, nil, fmt.Errorf("layer %d (%s): %w", i, spec.Name, err)
			}
			model.Add(layer)

		default:
			return nil, nil, fmt.Errorf("layer %d: unsupported layer type %q", i, spec.Type)
		}
	}

	return model, checkpoint.Metadata.ClassNames, nil
}

// classifierHeadIndex returns the index of the last non-auxiliary linear
// layer, or -1 when the architecture has none.
func classifierHeadIndex(checkpoint *checkpoints.Checkpoint) int {
	head := -1
	for i, spec := range checkpoint.Architecture {
		if spec.Type == checkpoints.LayerLinear && !spec.Aux {
			head = i
		}
	}
	return head
}

func loadLinearWeights(layer *Linear, checkpoint *checkpoints.Checkpoint, spec checkpoints.LayerSpec) error {
	weight := checkpoint.FindWeight(spec.Name, "weight")
	if weight == nil {
		return fmt.Errorf("checkpoint is missing weight data")
	}

	var biasData []float32
	if spec.Bias {
		bias := checkpoint.FindWeight(spec.Name, "bias")
		if bias == nil {
			return fmt.Errorf("checkpoint is missing bias data")
		}
		biasData = bias.Data
	}

	return layer.LoadWeights(weight.Data, biasData)
}

// SaveTrained exports a fine-tuned model as a JSON checkpoint. Linear layers
// are named fc1..fcN in order.
func SaveTrained(model *Sequential, path string, classNames []string) error {
	checkpoint := &checkpoints.Checkpoint{
		Metadata: checkpoints.CheckpointMetadata{
			Version:    "1.0.0",
			Framework:  "moodlens",
			CreatedAt:  time.Now().UTC(),
			ClassNames: classNames,
		},
	}

	linearCount := 0
	for _, module := range model.Modules() {
		switch m := module.(type) {
		case *Flatten:
			checkpoint.Architecture = append(checkpoint.Architecture,
				checkpoints.LayerSpec{Type: checkpoints.LayerFlatten})

		case *ReLU:
			checkpoint.Architecture = append(checkpoint.Architecture,
				checkpoints.LayerSpec{Type: checkpoints.LayerReLU})

		case *Dropout:
			checkpoint.Architecture = append(checkpoint.Architecture,
				checkpoints.LayerSpec{Type: checkpoints.LayerDropout, Rate: m.P()})

		case *Linear:
			linearCount++
			name := fmt.Sprintf("fc%d", linearCount)
			hasBias := m.Bias() != nil
			checkpoint.Architecture = append(checkpoint.Architecture, checkpoints.LayerSpec{
				Type:        checkpoints.LayerLinear,
				Name:        name,
				InFeatures:  m.InFeatures(),
				OutFeatures: m.OutFeatures(),
				Bias:        hasBias,
			})

			weightData, err := m.Weight().GetFloat32Data()
			if err != nil {
				return fmt.Errorf("failed to read %s weight: %w", name, err)
			}
			checkpoint.Weights = append(checkpoint.Weights, checkpoints.WeightTensor{
				Name:  name + ".weight",
				Shape: m.Weight().Shape,
				Data:  weightData,
				Layer: name,
				Type:  "weight",
			})

			if hasBias {
				biasData, err := m.Bias().GetFloat32Data()
				if err != nil {
					return fmt.Errorf("failed to read %s bias: %w", name, err)
				}
				checkpoint.Weights = append(checkpoint.Weights, checkpoints.WeightTensor{
					Name:  name + ".bias",
					Shape: m.Bias().Shape,
					Data:  biasData,
					Layer: name,
					Type:  "bias",
				})
			}

		default:
			return fmt.Errorf("cannot serialize module of type %T", module)
		}
	}

	return checkpoints.Save(checkpoint, path)
}
