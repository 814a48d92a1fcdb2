package training

import (
	"fmt"
	"strings"
	"time"
)

// EpochMetrics is the per-epoch training record. It is immutable after
// creation: printed to the console and forwarded to the metrics sink as-is.
type EpochMetrics struct {
	Epoch       int           `json:"epoch"`
	TotalEpochs int           `json:"total_epochs"`
	TrainLoss   float64       `json:"train_loss"`
	ValLoss     float64       `json:"val_loss"`
	ValAccuracy float64       `json:"val_accuracy"` // percentage, 0-100
	Duration    time.Duration `json:"duration"`
}

func (m EpochMetrics) String() string {
	return fmt.Sprintf("Epoch %d/%d: Train Loss=%.4f Val Loss=%.4f Val Acc=%.2f%% (%s)",
		m.Epoch, m.TotalEpochs, m.TrainLoss, m.ValLoss, m.ValAccuracy, m.Duration.Round(time.Millisecond))
}

// EvalResult summarizes a gradient-free pass over a dataset partition.
type EvalResult struct {
	Accuracy float64 // percentage, 0-100
	Correct  int
	Total    int
}

func (r EvalResult) String() string {
	return fmt.Sprintf("Accuracy: %.2f%% (%d/%d)", r.Accuracy, r.Correct, r.Total)
}

// ConfusionMatrix accumulates per-class prediction counts.
// Rows are true classes, columns predicted classes.
type ConfusionMatrix struct {
	classNames []string
	counts     [][]int
}

// NewConfusionMatrix creates an empty confusion matrix over the given classes.
func NewConfusionMatrix(classNames []string) *ConfusionMatrix {
	n := len(classNames)
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	return &ConfusionMatrix{classNames: classNames, counts: counts}
}

// Add records one prediction.
func (cm *ConfusionMatrix) Add(trueClass, predictedClass int) error {
	n := len(cm.classNames)
	if trueClass < 0 || trueClass >= n || predictedClass < 0 || predictedClass >= n {
		return fmt.Errorf("class index out of range: true=%d predicted=%d classes=%d",
			trueClass, predictedClass, n)
	}
	cm.counts[trueClass][predictedClass]++
	return nil
}

// Total returns the number of recorded predictions.
func (cm *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range cm.counts {
		for _, c := range row {
			total += c
		}
	}
	return total
}

// Accuracy returns the fraction of correct predictions as a percentage.
func (cm *ConfusionMatrix) Accuracy() float64 {
	total := cm.Total()
	if total == 0 {
		return 0
	}
	correct := 0
	for i := range cm.counts {
		correct += cm.counts[i][i]
	}
	return float64(correct) / float64(total) * 100
}

// Recall returns the per-class recall as a percentage, or 0 for a class with
// no true samples.
func (cm *ConfusionMatrix) Recall(class int) float64 {
	rowTotal := 0
	for _, c := range cm.counts[class] {
		rowTotal += c
	}
	if rowTotal == 0 {
		return 0
	}
	return float64(cm.counts[class][class]) / float64(rowTotal) * 100
}

// Precision returns the per-class precision as a percentage, or 0 for a class
// that was never predicted.
func (cm *ConfusionMatrix) Precision(class int) float64 {
	colTotal := 0
	for i := range cm.counts {
		colTotal += cm.counts[i][class]
	}
	if colTotal == 0 {
		return 0
	}
	return float64(cm.counts[class][class]) / float64(colTotal) * 100
}

func (cm *ConfusionMatrix) String() string {
	var sb strings.Builder
	sb.WriteString("Confusion matrix (rows: true, cols: predicted)\n")

	width := 10
	for _, name := range cm.classNames {
		if len(name)+2 > width {
			width = len(name) + 2
		}
	}

	sb.WriteString(fmt.Sprintf("%*s", width, ""))
	for _, name := range cm.classNames {
		sb.WriteString(fmt.Sprintf("%*s", width, name))
	}
	sb.WriteString("\n")

	for i, name := range cm.classNames {
		sb.WriteString(fmt.Sprintf("%*s", width, name))
		for j := range cm.classNames {
			sb.WriteString(fmt.Sprintf("%*d", width, cm.counts[i][j]))
		}
		sb.WriteString(fmt.Sprintf("  recall %.1f%%\n", cm.Recall(i)))
	}

	return sb.String()
}
