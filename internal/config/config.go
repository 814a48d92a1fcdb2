// Package config resolves runtime configuration from the environment and from
// optional YAML experiment files. Environment values supply paths and
// operational knobs; experiment files pin the training hyperparameters.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Data    DataConfig
	Extract ExtractConfig
	Metrics MetricsConfig
}

type DataConfig struct {
	Dir            string // dataset root, directory-per-class
	CheckpointPath string // pretrained checkpoint
}

type ExtractConfig struct {
	CascadePath string  // pigo facefinder cascade
	Workers     int     // detection workers (default 4)
	Margin      float64 // crop margin fraction (default 0.2)
	MinQuality  float64 // minimum detection score (default 5.0)
}

type MetricsConfig struct {
	RunLogPath string // JSONL run log; empty disables the live sink
	Project    string // run log project name (default "moodlens")
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Data: DataConfig{
			Dir:            os.Getenv("MOODLENS_DATA_DIR"),
			CheckpointPath: os.Getenv("MOODLENS_CHECKPOINT"),
		},
		Extract: ExtractConfig{
			CascadePath: os.Getenv("MOODLENS_CASCADE"),
			Workers:     envInt("MOODLENS_EXTRACT_WORKERS", 4),
			Margin:      envFloat("MOODLENS_EXTRACT_MARGIN", 0.2),
			MinQuality:  envFloat("MOODLENS_EXTRACT_MIN_QUALITY", 5.0),
		},
		Metrics: MetricsConfig{
			RunLogPath: os.Getenv("MOODLENS_RUN_LOG"),
			Project:    envString("MOODLENS_PROJECT", "moodlens"),
		},
	}
}

// Experiment pins the hyperparameters of a training run. Zero values fall
// back to the defaults below, so a partial YAML file is fine.
type Experiment struct {
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	ImageSize    int     `yaml:"image_size"`
	Seed         int64   `yaml:"seed"`
	Optimizer    string  `yaml:"optimizer"` // "sgd" or "adam"
	Momentum     float64 `yaml:"momentum"`
	WeightDecay  float64 `yaml:"weight_decay"`
	DropoutRate  float64 `yaml:"dropout_rate"`
}

// DefaultExperiment returns the baseline hyperparameters. The batch size here
// is the CLI default of 16; the data loader's own zero-value default is 32.
func DefaultExperiment() Experiment {
	return Experiment{
		Epochs:       10,
		BatchSize:    16,
		LearningRate: 0.001,
		ImageSize:    224,
		Optimizer:    "sgd",
		Momentum:     0.9,
	}
}

// LoadExperiment reads a YAML experiment file, filling unset fields from the
// defaults.
func LoadExperiment(path string) (Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, fmt.Errorf("failed to read experiment file %s: %w", path, err)
	}

	exp := Experiment{}
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Experiment{}, fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	exp.applyDefaults()

	if err := exp.Validate(); err != nil {
		return Experiment{}, fmt.Errorf("invalid experiment file %s: %w", path, err)
	}
	return exp, nil
}

func (e *Experiment) applyDefaults() {
	defaults := DefaultExperiment()
	if e.Epochs == 0 {
		e.Epochs = defaults.Epochs
	}
	if e.BatchSize == 0 {
		e.BatchSize = defaults.BatchSize
	}
	if e.LearningRate == 0 {
		e.LearningRate = defaults.LearningRate
	}
	if e.ImageSize == 0 {
		e.ImageSize = defaults.ImageSize
	}
	if e.Optimizer == "" {
		e.Optimizer = defaults.Optimizer
	}
	if e.Momentum == 0 && e.Optimizer == "sgd" {
		e.Momentum = defaults.Momentum
	}
}

// Validate rejects values the training loop cannot honor.
func (e Experiment) Validate() error {
	if e.Epochs < 0 {
		return fmt.Errorf("epochs must be non-negative, got %d", e.Epochs)
	}
	if e.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", e.BatchSize)
	}
	if e.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", e.LearningRate)
	}
	if e.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", e.ImageSize)
	}
	if e.Optimizer != "sgd" && e.Optimizer != "adam" {
		return fmt.Errorf("optimizer must be sgd or adam, got %q", e.Optimizer)
	}
	if e.DropoutRate < 0 || e.DropoutRate >= 1 {
		return fmt.Errorf("dropout_rate must be in [0, 1), got %v", e.DropoutRate)
	}
	return nil
}
