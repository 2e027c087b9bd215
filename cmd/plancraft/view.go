package main

import (
	"github.com/spf13/cobra"

	"github.com/plancraft/plancraft/internal/tui"
)

var viewCmd = &cobra.Command{
	Use:   "view <bundle.yaml>",
	Short: "Schedule a bundle and browse the result in a TUI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := runSchedule(args[0])
		if err != nil {
			return err
		}
		return tui.Run("Schedule — "+args[0], result)
	},
}
