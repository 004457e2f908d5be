package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"weft/internal/stress"
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List the available passes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		active := make(map[string]bool, len(cfg.Pipeline.Passes))
		for _, name := range cfg.Pipeline.Passes {
			active[name] = true
		}
		reg := stress.DefaultRegistry()
		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			mark := " "
			if active[name] {
				mark = color.GreenString("*")
			}
			fmt.Fprintf(out, "%s %-14s %s\n", mark, name, reg.Help(name))
		}
		return nil
	},
}
