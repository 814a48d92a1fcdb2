package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "moodlens",
	Short: "A facial emotion classification pipeline",
	Long: `Moodlens is a two-stage pipeline for facial emotion classification:
face extraction crops the dominant face out of raw photos, and training
fine-tunes a pretrained image classifier on the cropped faces.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
