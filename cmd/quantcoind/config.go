package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"quantcoin/internal/nodeconfig"
)

// configCmd groups configuration file utilities.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config"}
	cmd.AddCommand(configInitCmd())
	return cmd
}

// configInitCmd writes the default configuration as YAML, a starting
// point for an operator to edit rather than hand-writing node.yaml
// from scratch.
func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "write a default node configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := yaml.Marshal(nodeconfig.Default())
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0o644)
		},
	}
	return cmd
}
