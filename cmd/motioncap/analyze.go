package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"MOTION_CAPTURE/go-backend/internal/models"
	"MOTION_CAPTURE/go-backend/internal/services"
)

func AnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Print leg joint directions for the first frames of a motion document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, _ := cmd.Flags().GetInt("frames")

			doc, err := services.Load(args[0])
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return fmt.Errorf("invalid motion document %s: %w", args[0], err)
			}

			report := services.AnalyzeLegs(doc, frames)
			if len(report) == 0 {
				fmt.Println("No frames with 3D landmarks found.")
				return nil
			}
			printLegReport(os.Stdout, doc, report)
			return nil
		},
	}
	cmd.Flags().Int("frames", 3, "Number of frames with 3D landmarks to analyse")
	return cmd
}

func printLegReport(w io.Writer, doc *models.MotionDocument, report []services.LegFrame) {
	rule := strings.Repeat("=", 60)
	vec := func(v services.Vec3) string {
		return fmt.Sprintf("x=%7.4f, y=%7.4f, z=%7.4f", v.X, v.Y, v.Z)
	}
	joint := func(p *models.Pose, i int) string {
		l := p[i]
		return fmt.Sprintf("%-12s (%d): %s", models.LandmarkName(i), i, vec(services.Vec3{X: l.X, Y: l.Y, Z: l.Z}))
	}

	for _, f := range report {
		pose := doc.Frames[f.FrameNumber].Landmarks3D

		fmt.Fprintf(w, "\n%s\nFRAME %d (timestamp: %.3fs)\n%s\n", rule, f.FrameNumber, f.Timestamp, rule)

		fmt.Fprintln(w, "\nJOINTS:")
		for _, i := range []int{models.LeftHip, models.RightHip, models.LeftKnee, models.RightKnee, models.LeftAnkle, models.RightAnkle} {
			fmt.Fprintf(w, "  %s\n", joint(pose, i))
		}

		fmt.Fprintln(w, "\nLEG DIRECTIONS (hip -> knee -> ankle):")
		fmt.Fprintf(w, "  Left:  Hip->Knee:   %s\n", vec(f.Left.HipToKnee))
		fmt.Fprintf(w, "         Knee->Ankle: %s\n", vec(f.Left.KneeToAnkle))
		fmt.Fprintf(w, "  Right: Hip->Knee:   %s\n", vec(f.Right.HipToKnee))
		fmt.Fprintf(w, "         Knee->Ankle: %s\n", vec(f.Right.KneeToAnkle))

		fmt.Fprintln(w, "\nLEG ORIENTATION ANALYSIS:")
		fmt.Fprintf(w, "  Left leg Y direction (positive is down):  %7.4f\n", f.Left.HipToKnee.Y)
		fmt.Fprintf(w, "  Right leg Y direction (positive is down): %7.4f\n", f.Right.HipToKnee.Y)
		fmt.Fprintf(w, "  Both legs point down: %v\n", f.LegsPointDown())

		if f.HasPrevious {
			fmt.Fprintln(w, "\nCHANGES FROM PREVIOUS FRAME:")
			fmt.Fprintf(w, "  Right Hip Y change:   %7.4f\n", f.HipDeltaY)
			fmt.Fprintf(w, "  Right Knee Y change:  %7.4f\n", f.KneeDeltaY)
			fmt.Fprintf(w, "  Right Ankle Y change: %7.4f\n", f.AnkleDeltaY)
		}
	}

	fmt.Fprintf(w, "\n%s\nANALYSIS COMPLETE\n%s\n", rule, rule)
}
