package main

import (
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved board topology without touching hardware",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newPrinter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}
		cfg, _, err := resolveConfig()
		if err != nil {
			return err
		}
		return out.print(cfg)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
