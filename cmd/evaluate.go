package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens/training"
	"github.com/moodlens/moodlens/vision/dataloader"
	"github.com/moodlens/moodlens/vision/dataset"
	"github.com/moodlens/moodlens/vision/transform"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a trained model on a labeled dataset",
	Long: `Evaluate loads an exported model checkpoint and reports its argmax
accuracy and per-class confusion matrix over a directory-per-class dataset.`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("data", "", "Dataset root (directory per class)")
	evaluateCmd.Flags().String("model", "", "Trained model checkpoint")
	evaluateCmd.Flags().Int("batch-size", 16, "Batch size")
	evaluateCmd.Flags().Int("image-size", 224, "Square input resolution")
	evaluateCmd.MarkFlagRequired("data")
	evaluateCmd.MarkFlagRequired("model")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data")
	modelPath, _ := cmd.Flags().GetString("model")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	imageSize, _ := cmd.Flags().GetInt("image-size")

	model, classNames, err := training.LoadModel(modelPath)
	if err != nil {
		return err
	}

	ds, err := dataset.NewEmotionDataset(dataDir, 0)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if len(classNames) > 0 && len(classNames) != ds.NumClasses() {
		return fmt.Errorf("model has %d classes but dataset has %d",
			len(classNames), ds.NumClasses())
	}
	if len(classNames) == 0 {
		classNames = ds.ClassNames()
	}

	ds.SetTransform(transform.NewEval(imageSize))
	loader, err := dataloader.New(ds, dataloader.Config{BatchSize: batchSize})
	if err != nil {
		return fmt.Errorf("failed to build loader: %w", err)
	}

	// The trainer is only a carrier here: evaluation never touches the
	// optimizer, so a zero-LR SGD over no parameters is enough.
	trainer, err := training.NewTrainer(model,
		training.NewSGD(nil, 0, 0, 0, 0, false), nil,
		training.TrainerConfig{Epochs: 1})
	if err != nil {
		return err
	}

	result, matrix, err := trainer.EvaluateConfusion(loader, classNames)
	if err != nil {
		return err
	}

	fmt.Println(matrix.String())
	fmt.Printf("Accuracy: %.2f%% (%d/%d)\n", result.Accuracy, result.Correct, result.Total)
	return nil
}
