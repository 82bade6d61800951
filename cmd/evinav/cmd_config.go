package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/evinav/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all configuration values (secrets masked)",
			Args:  cobra.NoArgs,
			RunE:  runConfigList,
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Get a configuration value",
			Args:  cobra.ExactArgs(1),
			RunE:  runConfigGet,
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a configuration value",
			Args:  cobra.ExactArgs(2),
			RunE:  runConfigSet,
		},
	)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

func runConfigList(cmd *cobra.Command, args []string) error {
	values, err := config.ListValues(loadConfig(), true)
	if err != nil {
		return fmt.Errorf("list config: %w", err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%v\n", k, values[k])
	}
	return w.Flush()
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	val, err := config.GetValue(cfgPath, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if err := config.SetValue(cfgPath, key, value); err != nil {
		return err
	}
	if config.IsSecretKey(key) {
		value = "***"
	}
	fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, value)
	return nil
}
