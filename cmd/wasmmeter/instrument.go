package main

import (
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aspect-vm/wasmmeter"
)

func newInstrumentCmd(v *viper.Viper) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "instrument <module.wasm>",
		Short: "Inject gas metering into a module",
		Long: `Moves the start function to the entrypoint export and injects gas charges.
The instrumented module is written to --output, or to stdout if none is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, v)
			if err != nil {
				return err
			}
			meter, err := wasmmeter.NewMeter(wasmmeter.WithConfig(cfg), wasmmeter.WithLogger(logger))
			if err != nil {
				return err
			}

			code, err := readModule(args[0])
			if err != nil {
				return err
			}
			out, err := meter.Instrument(code)
			if err != nil {
				return err
			}

			logger.Info().
				Str("input", args[0]).
				Str("size", datasize.ByteSize(len(code)).HR()).
				Str("instrumented_size", datasize.ByteSize(len(out)).HR()).
				Stringer("checksum", wasmmeter.CreateChecksum(out)).
				Msg("module instrumented")

			if output == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return errors.Wrap(os.WriteFile(output, out, 0o644), "writing instrumented module")
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the instrumented module to this file.")
	return cmd
}
