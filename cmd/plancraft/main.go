// Command plancraft schedules roadmap bundles.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "plancraft",
	Short: "Resource-constrained roadmap scheduling",
	Long: `Plancraft takes a bundle of tasks with dependencies, deadlines,
priorities, and resource requirements and produces a concrete schedule.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
