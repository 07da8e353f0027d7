package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/aspect-vm/wasmmeter/types"
)

const envPrefix = "WASMMETER"

// Config keys, shared by flags, WASMMETER_* variables and the config file.
const (
	keyConfig     = "config"
	keyCostModel  = "cost-model"
	keyInjector   = "injector"
	keyFeatures   = "features"
	keyCollectAll = "collect-all"
	keyLogLevel   = "log-level"
)

// NewRootCmd builds the command tree. Each tree owns its viper instance so
// tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "wasmmeter",
		Short:         "Instrument WebAssembly modules with gas metering",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v)
		},
	}

	defaults := types.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.String(keyConfig, "", "Path to a config file (json, yaml or toml).")
	flags.String(keyCostModel, string(defaults.CostModel), "Cost model version.")
	flags.String(keyInjector, string(defaults.Injector), `Gas injector: "mutable_global" or "host_function".`)
	flags.StringSlice(keyFeatures, featureNames(defaults.Features), "Allowed WebAssembly features.")
	flags.Bool(keyCollectAll, false, "Report every failing function instead of the first one.")
	flags.String(keyLogLevel, zerolog.InfoLevel.String(), "Log level.")
	for _, key := range []string{keyConfig, keyCostModel, keyInjector, keyFeatures, keyCollectAll, keyLogLevel} {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("DEVELOPER ERROR: %s", err))
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(newInstrumentCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newCostsCmd(v))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	return errors.Wrapf(v.ReadInConfig(), "reading config file %s", path)
}

// loadConfig assembles the pipeline configuration from flags, environment
// and config file, in viper's precedence order.
func loadConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		CostModel:  types.CostModelVersion(v.GetString(keyCostModel)),
		Injector:   types.InjectorKind(v.GetString(keyInjector)),
		Features:   types.Features{},
		CollectAll: v.GetBool(keyCollectAll),
	}
	for _, f := range v.GetStringSlice(keyFeatures) {
		cfg.Features[types.Feature(strings.TrimSpace(f))] = true
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, v *viper.Viper) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return zerolog.Nop(), err
	}
	out := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func featureNames(fs types.Features) []string {
	var names []string
	for _, f := range maps.Keys(fs) {
		if fs[f] {
			names = append(names, string(f))
		}
	}
	slices.Sort(names)
	return names
}

func readModule(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	return code, errors.Wrap(err, "reading module")
}
