package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"rovercode-go/services/rover"
)

var (
	rampOver  time.Duration
	rampSteps int
)

var driveCmd = &cobra.Command{
	Use:   "drive <speed>",
	Short: "Run both drive motors at speed in [-1, 1]",
	Long: `Run both drive motors at speed in [-1, 1], hold for --for, then stop.

Negative speeds need a "--" separator: roverctl drive -- -0.5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, err := parseFloat("speed", args[0])
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			var (
				v   any
				err error
			)
			if rampOver > 0 {
				v, err = svc.DriveRamp(ctx, speed, rampOver, rampSteps)
			} else {
				v, err = svc.Drive(ctx, speed)
			}
			if err != nil {
				return nil, err
			}
			hold(ctx, holdFor)
			return v, nil
		})
	},
}

var steerCmd = &cobra.Command{
	Use:   "steer <rel>",
	Short: "Steer rel ticks from the trimmed centre",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rel, err := parseInt("rel", args[0])
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			v, err := svc.Steer(rel)
			if err != nil {
				return nil, err
			}
			hold(ctx, holdFor)
			return v, nil
		})
	},
}

func init() {
	driveCmd.Flags().DurationVar(&holdFor, "for", time.Second, "How long to hold the speed before stopping")
	driveCmd.Flags().DurationVar(&rampOver, "ramp", 0, "Ramp to the speed over this long")
	driveCmd.Flags().IntVar(&rampSteps, "steps", 10, "Ramp steps")
	steerCmd.Flags().DurationVar(&holdFor, "for", time.Second, "How long to hold the position")
	rootCmd.AddCommand(driveCmd, steerCmd)
}
