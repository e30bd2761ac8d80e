package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/services"
)

func SampleCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic motion document for testing consumers",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = filepath.Join(cfg.OutputDir, "sample_motion.json")
			}

			fmt.Println("Creating sample motion data for testing...")
			doc := services.SampleDocument()
			if err := services.WriteDocument(output, doc); err != nil {
				return err
			}

			fmt.Printf("✓ Sample motion data created: %s\n", output)
			fmt.Printf("✓ %d frames at %.0f FPS\n", len(doc.Frames), doc.Metadata.FPS)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output JSON file path (default output/sample_motion.json)")
	return cmd
}
