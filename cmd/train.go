package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens/internal/config"
	"github.com/moodlens/moodlens/training"
	"github.com/moodlens/moodlens/vision/dataloader"
	"github.com/moodlens/moodlens/vision/dataset"
	"github.com/moodlens/moodlens/vision/transform"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fine-tune a pretrained classifier on an emotion dataset",
	Long: `Train splits a directory-per-class image dataset 70/15/15 into train,
validation and test partitions, fine-tunes the classifier head of a pretrained
checkpoint with cross-entropy loss, and reports the final test accuracy.`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("data", "", "Dataset root (directory per class); defaults to MOODLENS_DATA_DIR")
	trainCmd.Flags().String("checkpoint", "", "Pretrained checkpoint; defaults to MOODLENS_CHECKPOINT")
	trainCmd.Flags().String("experiment", "", "YAML experiment file with hyperparameters")
	trainCmd.Flags().Int("epochs", 10, "Number of training epochs")
	trainCmd.Flags().Int("batch-size", 16, "Batch size")
	trainCmd.Flags().Float64("lr", 0.001, "Learning rate")
	trainCmd.Flags().Int("image-size", 224, "Square input resolution")
	trainCmd.Flags().Int64("seed", 0, "Split/shuffle seed; 0 keeps runs unseeded")
	trainCmd.Flags().String("save", "", "Export the trained model to this path after the final epoch")
	trainCmd.Flags().Int("max-per-class", 0, "Cap samples per class; 0 keeps everything")
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	exp := config.DefaultExperiment()
	if path, _ := cmd.Flags().GetString("experiment"); path != "" {
		var err error
		exp, err = config.LoadExperiment(path)
		if err != nil {
			return err
		}
	}

	// Explicit flags override the experiment file.
	if cmd.Flags().Changed("epochs") {
		exp.Epochs, _ = cmd.Flags().GetInt("epochs")
	}
	if cmd.Flags().Changed("batch-size") {
		exp.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	if cmd.Flags().Changed("lr") {
		exp.LearningRate, _ = cmd.Flags().GetFloat64("lr")
	}
	if cmd.Flags().Changed("image-size") {
		exp.ImageSize, _ = cmd.Flags().GetInt("image-size")
	}
	if cmd.Flags().Changed("seed") {
		exp.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if err := exp.Validate(); err != nil {
		return err
	}

	dataDir, _ := cmd.Flags().GetString("data")
	if dataDir == "" {
		dataDir = cfg.Data.Dir
	}
	if dataDir == "" {
		return fmt.Errorf("no dataset root: pass --data or set MOODLENS_DATA_DIR")
	}
	checkpointPath, _ := cmd.Flags().GetString("checkpoint")
	if checkpointPath == "" {
		checkpointPath = cfg.Data.CheckpointPath
	}
	if checkpointPath == "" {
		return fmt.Errorf("no pretrained checkpoint: pass --checkpoint or set MOODLENS_CHECKPOINT")
	}

	if exp.Seed != 0 {
		training.SetRandomSeed(exp.Seed)
	}

	maxPerClass, _ := cmd.Flags().GetInt("max-per-class")
	ds, err := dataset.NewEmotionDataset(dataDir, maxPerClass)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	fmt.Println(ds.String())

	train, val, test, err := ds.Split3(0.7, 0.15, exp.Seed)
	if err != nil {
		return fmt.Errorf("failed to split dataset: %w", err)
	}
	fmt.Printf("Split: %d train / %d val / %d test\n", train.Len(), val.Len(), test.Len())

	train.SetTransform(transform.NewAugment(exp.ImageSize, exp.Seed))
	eval := transform.NewEval(exp.ImageSize)
	val.SetTransform(eval)
	test.SetTransform(eval)

	// Val and test share one cache: both use the deterministic transform.
	evalCache := dataloader.NewCache(2000)

	trainLoader, err := dataloader.New(train, dataloader.Config{
		BatchSize: exp.BatchSize,
		Shuffle:   true,
		Seed:      exp.Seed,
	})
	if err != nil {
		return fmt.Errorf("failed to build train loader: %w", err)
	}
	valLoader, err := dataloader.New(val, dataloader.Config{
		BatchSize: exp.BatchSize,
		Cache:     evalCache,
	})
	if err != nil {
		return fmt.Errorf("failed to build val loader: %w", err)
	}
	testLoader, err := dataloader.New(test, dataloader.Config{
		BatchSize: exp.BatchSize,
		Cache:     evalCache,
	})
	if err != nil {
		return fmt.Errorf("failed to build test loader: %w", err)
	}

	model, err := training.BuildPretrained(checkpointPath, ds.NumClasses())
	if err != nil {
		return err
	}

	optimizer, err := buildOptimizer(model, exp)
	if err != nil {
		return err
	}

	sink, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	trainer, err := training.NewTrainer(model, optimizer, sink, training.TrainerConfig{
		Epochs:       exp.Epochs,
		Project:      cfg.Metrics.Project,
		ShowProgress: true,
		RunConfig: map[string]interface{}{
			"epochs":        exp.Epochs,
			"batch_size":    exp.BatchSize,
			"learning_rate": exp.LearningRate,
			"image_size":    exp.ImageSize,
			"optimizer":     exp.Optimizer,
			"seed":          exp.Seed,
			"classes":       ds.NumClasses(),
		},
	})
	if err != nil {
		return err
	}

	if _, err := trainer.Fit(trainLoader, valLoader); err != nil {
		return err
	}

	result, err := trainer.Evaluate(testLoader)
	if err != nil {
		return err
	}
	fmt.Printf("Test Accuracy: %.2f%% (%d/%d)\n", result.Accuracy, result.Correct, result.Total)

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := training.SaveTrained(model, savePath, ds.ClassNames()); err != nil {
			return fmt.Errorf("failed to export trained model: %w", err)
		}
		fmt.Printf("Saved trained model to %s\n", savePath)
	}

	return nil
}

func buildOptimizer(model *training.Sequential, exp config.Experiment) (training.Optimizer, error) {
	params := model.TrainableParameters()
	switch exp.Optimizer {
	case "sgd":
		return training.NewSGD(params, exp.LearningRate, exp.Momentum, exp.WeightDecay, 0, false), nil
	case "adam":
		return training.NewAdam(params, exp.LearningRate, 0.9, 0.999, 1e-8, exp.WeightDecay), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", exp.Optimizer)
	}
}

func buildSink(cfg *config.Config) (training.MetricsSink, error) {
	if cfg.Metrics.RunLogPath == "" {
		return training.NopSink{}, nil
	}
	return training.NewJSONLSink(cfg.Metrics.RunLogPath)
}
