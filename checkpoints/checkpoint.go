// Package checkpoints defines the JSON model checkpoint format used for both
// pretrained weights and trained model export.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Layer type names used in checkpoint architecture specs.
const (
	LayerLinear  = "linear"
	LayerReLU    = "relu"
	LayerDropout = "dropout"
	LayerFlatten = "flatten"
)

// Checkpoint represents a serialized model: its architecture, parameter
// tensors and metadata.
type Checkpoint struct {
	Architecture []LayerSpec        `json:"architecture"`
	Weights      []WeightTensor     `json:"weights"`
	Metadata     CheckpointMetadata `json:"metadata"`
}

// LayerSpec describes one layer of a sequential architecture.
type LayerSpec struct {
	Type        string  `json:"type"`
	Name        string  `json:"name,omitempty"`
	InFeatures  int     `json:"in_features,omitempty"`
	OutFeatures int     `json:"out_features,omitempty"`
	Bias        bool    `json:"bias,omitempty"`
	Rate        float64 `json:"rate,omitempty"`
	// Aux marks an auxiliary classifier head. Aux layers carry weights in
	// pretrained checkpoints but are dropped when the model is rebuilt for
	// fine-tuning.
	Aux bool `json:"aux,omitempty"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Layer string    `json:"layer"`
	Type  string    `json:"type"` // "weight" or "bias"
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	ClassNames  []string  `json:"class_names,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Validate checks internal consistency: every linear layer has dimensions and
// every weight tensor's data matches its declared shape.
func (c *Checkpoint) Validate() error {
	if len(c.Architecture) == 0 {
		return fmt.Errorf("checkpoint has no architecture")
	}
	for i, layer := range c.Architecture {
		switch layer.Type {
		case LayerLinear:
			if layer.InFeatures <= 0 || layer.OutFeatures <= 0 {
				return fmt.Errorf("layer %d: linear layer missing dimensions", i)
			}
		case LayerReLU, LayerFlatten:
		case LayerDropout:
			if layer.Rate < 0 || layer.Rate >= 1 {
				return fmt.Errorf("layer %d: dropout rate %v out of range", i, layer.Rate)
			}
		default:
			return fmt.Errorf("layer %d: unknown layer type %q", i, layer.Type)
		}
	}
	for _, w := range c.Weights {
		elems := 1
		for _, dim := range w.Shape {
			elems *= dim
		}
		if elems != len(w.Data) {
			return fmt.Errorf("weight %s: shape %v does not match %d data elements",
				w.Name, w.Shape, len(w.Data))
		}
	}
	return nil
}

// FindWeight returns the weight tensor for the named layer and parameter type,
// or nil when absent.
func (c *Checkpoint) FindWeight(layer, paramType string) *WeightTensor {
	for i := range c.Weights {
		if c.Weights[i].Layer == layer && c.Weights[i].Type == paramType {
			return &c.Weights[i]
		}
	}
	return nil
}

// Save writes the checkpoint to path as JSON.
func Save(checkpoint *Checkpoint, path string) error {
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid checkpoint: %w", err)
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", path, err)
	}
	return nil
}

// Load reads and validates a JSON checkpoint from path.
func Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	if err := checkpoint.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	return &checkpoint, nil
}
