package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"rovercode-go/services/rover"
)

var holdFor time.Duration

// channelValue reports a raw channel write.
type channelValue struct {
	Channel int    `json:"channel"`
	On      uint16 `json:"on"`
	Off     uint16 `json:"off"`
}

var pwmCmd = &cobra.Command{
	Use:   "pwm",
	Short: "PCA9685 controller",
}

var pwmInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Reset the controller and apply the configured frequency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			return svc.PWM(), nil
		})
	},
}

var pwmFreqCmd = &cobra.Command{
	Use:   "freq <hz>",
	Short: "Set the output frequency (24..1526 Hz)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hz, err := parseInt("frequency", args[0])
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			if err := svc.SetFrequency(ctx, hz); err != nil {
				return nil, err
			}
			return svc.PWM(), nil
		})
	},
}

var pwmSetCmd = &cobra.Command{
	Use:   "set <channel> <on> <off>",
	Short: "Write raw on/off ticks to one channel",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := parseInt("channel", args[0])
		if err != nil {
			return err
		}
		on, err := parseTick("on", args[1])
		if err != nil {
			return err
		}
		off, err := parseTick("off", args[2])
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			if err := svc.SetChannel(ch, on, off); err != nil {
				return nil, err
			}
			hold(ctx, holdFor)
			return channelValue{Channel: ch, On: on, Off: off}, nil
		})
	},
}

func init() {
	pwmSetCmd.Flags().DurationVar(&holdFor, "for", time.Second, "How long to hold the output before shutdown")
	pwmCmd.AddCommand(pwmInitCmd, pwmFreqCmd, pwmSetCmd)
	rootCmd.AddCommand(pwmCmd)
}
