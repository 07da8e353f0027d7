package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aspect-vm/wasmmeter"
	"github.com/aspect-vm/wasmmeter/internal/runtime/gas"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the library version and the known cost models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wasmmeter %s\n", wasmmeter.LibwasmmeterVersion())
			fmt.Fprintf(out, "cost models: %v (current %s)\n", gas.Versions(), gas.DefaultRules().Version())
		},
	}
}
