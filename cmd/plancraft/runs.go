package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plancraft/plancraft/internal/store"
)

var flagRunsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs <db>",
	Short: "List stored scheduling runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(args[0])
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.ListRuns(flagRunsLimit)
		if err != nil {
			return err
		}

		for _, run := range runs {
			fmt.Printf("%s  %s  %-16s  %3d tasks  %d warnings\n",
				run.ID, run.CreatedAt.Format("2006-01-02 15:04"), run.Algorithm,
				run.TaskCount, run.WarningCount)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&flagRunsLimit, "limit", 50, "maximum runs to list")
}
