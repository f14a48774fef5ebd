package main

import (
	"context"

	"github.com/spf13/cobra"

	"rovercode-go/services/rover"
)

var tempCmd = &cobra.Command{
	Use:   "temp",
	Short: "Read the MCP9808 ambient temperature and alert flags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			return svc.Temperature()
		})
	},
}

var rangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Take one US-100 distance measurement",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			return svc.MeasureRange(ctx)
		})
	},
}

var coprocCmd = &cobra.Command{
	Use:   "coproc <token> <status>",
	Short: "Exchange one frame with the co-processor",
	Long: `Send a request frame and read the reply.

status is a wire letter (I, S, E, N) or a name (initial, success, error, nop).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := parseToken(args[0])
		if err != nil {
			return err
		}
		st, err := parseStatus(args[1])
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			return svc.Coproc(ctx, token, st)
		})
	},
}

func init() {
	rootCmd.AddCommand(tempCmd, rangeCmd, coprocCmd)
}
