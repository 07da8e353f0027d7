package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aspect-vm/wasmmeter"
	"github.com/aspect-vm/wasmmeter/types"
)

type validateResult struct {
	Module   string            `json:"module"`
	Checksum types.Checksum    `json:"checksum"`
	Valid    bool              `json:"valid"`
	Error    *types.MeterError `json:"error,omitempty"`
	Message  string            `json:"message,omitempty"`
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <module.wasm>",
		Short: "Check a module against the allowed feature set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			meter, err := wasmmeter.NewMeter(wasmmeter.WithConfig(cfg))
			if err != nil {
				return err
			}
			code, err := readModule(args[0])
			if err != nil {
				return err
			}

			verr := meter.Validate(code)
			res := validateResult{
				Module:   args[0],
				Checksum: wasmmeter.CreateChecksum(code),
				Valid:    verr == nil,
				Error:    types.ToMeterError(verr),
			}
			if verr != nil {
				res.Message = verr.Error()
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else if res.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			}
			if verr != nil {
				return fmt.Errorf("%s: %w", args[0], verr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON.")
	return cmd
}
