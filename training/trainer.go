package training

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/moodlens/moodlens/tensor"
	"github.com/moodlens/moodlens/vision/dataloader"
)

// BatchSource is the stream a trainer consumes: one pass of batches, rewound
// with Reset. Both passes over a partition must visit every sample exactly
// once.
type BatchSource interface {
	Reset()
	NextBatch() (*dataloader.Batch, error)
	Len() int
	NumSamples() int
}

// TrainerConfig holds configuration for a training run.
type TrainerConfig struct {
	Epochs       int
	Project      string // run log project name
	ShowProgress bool   // render a per-epoch progress bar
	RunConfig    map[string]interface{}
}

// Trainer drives the epoch loop: a training pass followed by a validation
// pass, exactly Epochs times. There is no early stopping, no mid-run
// checkpointing and no learning-rate scheduling; every batch error aborts the
// run.
type Trainer struct {
	model     *Sequential
	optimizer Optimizer
	sink      MetricsSink
	config    TrainerConfig
}

// NewTrainer creates a trainer. A nil sink is replaced with NopSink.
func NewTrainer(model *Sequential, optimizer Optimizer, sink MetricsSink, config TrainerConfig) (*Trainer, error) {
	if model == nil {
		return nil, fmt.Errorf("trainer requires a model")
	}
	if optimizer == nil {
		return nil, fmt.Errorf("trainer requires an optimizer")
	}
	if config.Epochs < 0 {
		return nil, fmt.Errorf("epochs must be non-negative, got %d", config.Epochs)
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Trainer{
		model:     model,
		optimizer: optimizer,
		sink:      sink,
		config:    config,
	}, nil
}

// Fit runs the full training schedule and returns the per-epoch metrics.
// With zero epochs it returns immediately: no optimizer step, no sink records,
// parameters untouched.
func (t *Trainer) Fit(train, val BatchSource) ([]EpochMetrics, error) {
	if t.config.Epochs == 0 {
		return nil, nil
	}

	if err := t.sink.BeginRun(t.config.Project, t.config.RunConfig); err != nil {
		return nil, fmt.Errorf("failed to begin metrics run: %w", err)
	}

	history := make([]EpochMetrics, 0, t.config.Epochs)
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		start := time.Now()

		trainLoss, err := t.trainPass(train, epoch)
		if err != nil {
			return history, fmt.Errorf("epoch %d training pass failed: %w", epoch, err)
		}

		valLoss, valResult, err := t.validationPass(val)
		if err != nil {
			return history, fmt.Errorf("epoch %d validation pass failed: %w", epoch, err)
		}

		metrics := EpochMetrics{
			Epoch:       epoch,
			TotalEpochs: t.config.Epochs,
			TrainLoss:   trainLoss,
			ValLoss:     valLoss,
			ValAccuracy: valResult.Accuracy,
			Duration:    time.Since(start),
		}
		history = append(history, metrics)

		fmt.Println(metrics.String())
		if err := t.sink.Log(metrics); err != nil {
			return history, fmt.Errorf("failed to log epoch %d metrics: %w", epoch, err)
		}
	}

	return history, nil
}

// trainPass runs one full pass over the training stream and returns the mean
// of the per-batch losses. Batches are weighted equally regardless of size.
func (t *Trainer) trainPass(train BatchSource, epoch int) (float64, error) {
	t.model.Train()
	train.Reset()

	var bar *progressbar.ProgressBar
	if t.config.ShowProgress {
		bar = progressbar.NewOptions(train.Len(),
			progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d/%d", epoch, t.config.Epochs)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	lossSum := 0.0
	batches := 0
	for {
		batch, err := train.NextBatch()
		if err != nil {
			return 0, err
		}
		if batch == nil {
			break
		}

		t.optimizer.ZeroGrad()

		logits, err := t.model.Forward(batch.Images)
		if err != nil {
			return 0, fmt.Errorf("forward pass failed: %w", err)
		}
		loss, err := CrossEntropyLoss(logits, batch.Labels)
		if err != nil {
			return 0, fmt.Errorf("loss computation failed: %w", err)
		}
		if err := loss.Backward(); err != nil {
			return 0, fmt.Errorf("backward pass failed: %w", err)
		}
		if err := t.optimizer.Step(); err != nil {
			return 0, fmt.Errorf("optimizer step failed: %w", err)
		}

		value, err := loss.Item()
		if err != nil {
			return 0, fmt.Errorf("failed to read loss value: %w", err)
		}
		lossSum += value
		batches++

		if bar != nil {
			bar.Add(1)
		}
	}

	if batches == 0 {
		return 0, fmt.Errorf("training stream yielded no batches")
	}
	return lossSum / float64(batches), nil
}

// validationPass runs one gradient-free pass over the validation stream,
// returning the mean per-batch loss and argmax accuracy.
func (t *Trainer) validationPass(val BatchSource) (float64, EvalResult, error) {
	t.model.Eval()
	val.Reset()

	lossSum := 0.0
	batches := 0
	correct := 0
	total := 0
	for {
		batch, err := val.NextBatch()
		if err != nil {
			return 0, EvalResult{}, err
		}
		if batch == nil {
			break
		}

		logits, err := t.model.Forward(batch.Images)
		if err != nil {
			return 0, EvalResult{}, fmt.Errorf("forward pass failed: %w", err)
		}
		loss, err := CrossEntropyLoss(logits, batch.Labels)
		if err != nil {
			return 0, EvalResult{}, fmt.Errorf("loss computation failed: %w", err)
		}
		value, err := loss.Item()
		if err != nil {
			return 0, EvalResult{}, fmt.Errorf("failed to read loss value: %w", err)
		}
		lossSum += value
		batches++

		batchCorrect, batchTotal, err := countCorrect(logits, batch)
		if err != nil {
			return 0, EvalResult{}, err
		}
		correct += batchCorrect
		total += batchTotal
	}

	if batches == 0 {
		return 0, EvalResult{}, fmt.Errorf("validation stream yielded no batches")
	}

	result := EvalResult{Correct: correct, Total: total}
	if total > 0 {
		result.Accuracy = float64(correct) / float64(total) * 100
	}
	return lossSum / float64(batches), result, nil
}

// Evaluate runs a gradient-free argmax-accuracy pass over a stream, typically
// the held-out test partition. The model is read-only for the duration.
func (t *Trainer) Evaluate(source BatchSource) (EvalResult, error) {
	result, _, err := t.evaluate(source, nil)
	return result, err
}

// EvaluateConfusion is Evaluate plus a per-class confusion matrix.
func (t *Trainer) EvaluateConfusion(source BatchSource, classNames []string) (EvalResult, *ConfusionMatrix, error) {
	matrix := NewConfusionMatrix(classNames)
	result, matrix, err := t.evaluate(source, matrix)
	return result, matrix, err
}

func (t *Trainer) evaluate(source BatchSource, matrix *ConfusionMatrix) (EvalResult, *ConfusionMatrix, error) {
	t.model.Eval()
	source.Reset()

	correct := 0
	total := 0
	for {
		batch, err := source.NextBatch()
		if err != nil {
			return EvalResult{}, nil, err
		}
		if batch == nil {
			break
		}

		logits, err := t.model.Forward(batch.Images)
		if err != nil {
			return EvalResult{}, nil, fmt.Errorf("forward pass failed: %w", err)
		}

		predictions, err := Argmax(logits)
		if err != nil {
			return EvalResult{}, nil, err
		}
		labels, err := batch.Labels.GetInt32Data()
		if err != nil {
			return EvalResult{}, nil, err
		}
		for i, prediction := range predictions {
			if int32(prediction) == labels[i] {
				correct++
			}
			total++
			if matrix != nil {
				if err := matrix.Add(int(labels[i]), prediction); err != nil {
					return EvalResult{}, nil, err
				}
			}
		}
	}

	result := EvalResult{Correct: correct, Total: total}
	if total > 0 {
		result.Accuracy = float64(correct) / float64(total) * 100
	}
	return result, matrix, nil
}

func countCorrect(logits *tensor.Tensor, batch *dataloader.Batch) (int, int, error) {
	predictions, err := Argmax(logits)
	if err != nil {
		return 0, 0, err
	}
	labels, err := batch.Labels.GetInt32Data()
	if err != nil {
		return 0, 0, err
	}
	correct := 0
	for i, prediction := range predictions {
		if int32(prediction) == labels[i] {
			correct++
		}
	}
	return correct, len(labels), nil
}
