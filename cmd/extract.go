package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moodlens/moodlens/facecrop"
	"github.com/moodlens/moodlens/internal/config"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Crop faces out of a raw image dataset",
	Long: `Extract walks a directory-per-class image tree, detects the dominant
face in each image and writes the crop to the same class layout under the
output directory. Images without a detectable face produce no output and are
reported in the summary.`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("input", "", "Raw dataset root (directory per class)")
	extractCmd.Flags().String("output", "", "Output root for cropped faces")
	extractCmd.Flags().String("cascade", "", "Pigo cascade file; defaults to MOODLENS_CASCADE")
	extractCmd.Flags().Int("workers", 0, "Detection workers; defaults to MOODLENS_EXTRACT_WORKERS")
	extractCmd.Flags().Float64("margin", -1, "Crop margin fraction; defaults to MOODLENS_EXTRACT_MARGIN")
	extractCmd.MarkFlagRequired("input")
	extractCmd.MarkFlagRequired("output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cascadePath, _ := cmd.Flags().GetString("cascade")
	if cascadePath == "" {
		cascadePath = cfg.Extract.CascadePath
	}
	if cascadePath == "" {
		return fmt.Errorf("no cascade file: pass --cascade or set MOODLENS_CASCADE")
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Extract.Workers
	}
	margin, _ := cmd.Flags().GetFloat64("margin")
	if margin < 0 {
		margin = cfg.Extract.Margin
	}

	detector, err := facecrop.NewPigoDetector(cascadePath, float32(cfg.Extract.MinQuality))
	if err != nil {
		return err
	}

	extractor, err := facecrop.NewExtractor(detector, facecrop.Config{
		Workers:      workers,
		Margin:       margin,
		ShowProgress: true,
	})
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")

	summary, err := extractor.Run(input, output)
	if err != nil {
		return err
	}

	fmt.Println(summary.String())
	if summary.NoFace > 0 {
		fmt.Printf("Warning: %d images yielded no face and were skipped; they will be absent from training\n", summary.NoFace)
	}
	return nil
}
