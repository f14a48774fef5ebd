package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"rovercode-go/drivers/drv8830"
	"rovercode-go/services/rover"
	"rovercode-go/types"
)

var dacCmd = &cobra.Command{
	Use:   "dac",
	Short: "DRV8830 voltage-DAC motor drivers",
}

// dacValue runs write against the named driver and reports the control
// byte it sent.
func dacValue(cmd *cobra.Command, name string, control byte, write func(*rover.Service) error) error {
	return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
		if err := write(svc); err != nil {
			return nil, err
		}
		hold(ctx, holdFor)
		v := types.DacValue{Name: name, Control: control}
		if d, ok := svc.Config().DACByName(name); ok {
			v.Addr = d.Address
		}
		return v, nil
	})
}

var dacDriveCmd = &cobra.Command{
	Use:   "drive <name> <speed>",
	Short: "Drive at speed VSET steps (6..63); the sign picks direction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		speed, err := parseInt("speed", args[1])
		if err != nil {
			return err
		}
		return dacValue(cmd, args[0], drv8830.ControlByte(speed), func(svc *rover.Service) error {
			return svc.DacDrive(args[0], speed)
		})
	},
}

var dacBrakeCmd = &cobra.Command{
	Use:   "brake <name>",
	Short: "Short the motor terminals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dacValue(cmd, args[0], byte(drv8830.Brake), func(svc *rover.Service) error {
			return svc.DacBrake(args[0])
		})
	},
}

var dacStandByCmd = &cobra.Command{
	Use:   "standby <name>",
	Short: "Let the motor freewheel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return dacValue(cmd, args[0], byte(drv8830.Freewheel), func(svc *rover.Service) error {
			return svc.DacStandBy(args[0])
		})
	},
}

var dacFaultCmd = &cobra.Command{
	Use:   "fault",
	Short: "Read and clear every fault register",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			faults, err := svc.DacFaults()
			if err != nil {
				return nil, err
			}
			if faults == nil {
				faults = []types.DacFault{}
			}
			return faults, nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{dacDriveCmd, dacBrakeCmd, dacStandByCmd} {
		c.Flags().DurationVar(&holdFor, "for", time.Second, "How long to hold before shutdown")
	}
	dacCmd.AddCommand(dacDriveCmd, dacBrakeCmd, dacStandByCmd, dacFaultCmd)
	rootCmd.AddCommand(dacCmd)
}
