package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "boatclient",
		Short: "Boat game chain client daemon",
	}

	InitRootCmd(rootCmd)

	return rootCmd
}
