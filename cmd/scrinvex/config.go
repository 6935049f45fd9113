package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage scrinvex configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.scrinvex.yaml.",
		Example: `  scrinvex config                          # show all config
  scrinvex config set barcode_tag CR        # use raw barcodes
  scrinvex config set skip_duplicates true  # drop flagged duplicates
  scrinvex config get min_mapq              # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(stdout)
		},
	}

	cmd.AddCommand(newConfigSetCmd(stdout))
	cmd.AddCommand(newConfigGetCmd(stdout))

	return cmd
}

func newConfigSetCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(stdout, args[0], args[1])
		},
	}
}

func newConfigGetCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(stdout, args[0])
		},
	}
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// configKeys lists the settings understood by scrinvex.
func configKeys() []string {
	keys := []string{"verbose"}
	for key := range countFlags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func knownKey(key string) bool {
	for _, k := range configKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func runConfigShow(stdout io.Writer) error {
	settings := make(map[string]any)
	for _, key := range configKeys() {
		settings[key] = viper.Get(key)
	}

	if f := viper.ConfigFileUsed(); f != "" {
		fmt.Fprintf(stdout, "# Config file: %s\n", f)
	} else {
		fmt.Fprintln(stdout, "# No config file. Defaults and environment shown; file: ~/.scrinvex.yaml")
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(stdout, string(out))
	return nil
}

func runConfigSet(stdout io.Writer, key, value string) error {
	if !knownKey(key) {
		return usageError{fmt.Errorf("unknown config key %q", key)}
	}

	// Parse boolean-like and numeric values
	var val any = value
	switch value {
	case "true", "yes", "on":
		val = true
	case "false", "no", "off":
		val = false
	default:
		if n, err := strconv.Atoi(value); err == nil {
			val = n
		}
	}
	viper.Set(key, val)

	// Ensure config file exists
	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".scrinvex.yaml")
	}

	if err := writeConfig(cfgFile, key, val); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(stdout, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

// writeConfig updates one key in the config file, keeping the values already
// stored there and leaving flag defaults out.
func writeConfig(path, key string, val any) error {
	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yaml")
	if err := file.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	file.Set(key, val)
	return file.WriteConfigAs(path)
}

func runConfigGet(stdout io.Writer, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(stdout, val)
	return nil
}
