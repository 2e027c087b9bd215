package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/loader"
	"github.com/plancraft/plancraft/internal/lock"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/render"
	"github.com/plancraft/plancraft/internal/service"
	"github.com/plancraft/plancraft/internal/store"
)

var (
	flagAlgorithm string
	flagStrategy  string
	flagLockIn    string
	flagLockOut   string
	flagGantt     bool
	flagStoreDB   string
	flagVerbosity int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <bundle.yaml>",
	Short: "Schedule a bundle and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := runSchedule(args[0])
		if err != nil {
			return err
		}

		if flagGantt {
			fmt.Print(render.Gantt(result))
		} else {
			fmt.Print(render.Table(result))
		}

		if flagLockOut != "" {
			if err := lock.Write(flagLockOut, result, nil); err != nil {
				return fmt.Errorf("write lock file: %w", err)
			}
		}

		if flagStoreDB != "" {
			s, err := store.New(flagStoreDB)
			if err != nil {
				return err
			}
			defer s.Close()
			runID, err := s.SaveRun(result)
			if err != nil {
				return err
			}
			fmt.Printf("saved run %s\n", runID)
		}

		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&flagAlgorithm, "algorithm", "", "override algorithm (parallel_sgs, bounded_rollout, critical_path)")
	scheduleCmd.Flags().StringVar(&flagStrategy, "strategy", "", "override strategy (weighted, cr_first, priority_first, atc)")
	scheduleCmd.Flags().StringVar(&flagLockIn, "lock", "", "apply a lock file before scheduling")
	scheduleCmd.Flags().StringVar(&flagLockOut, "lock-out", "", "write the result to a lock file")
	scheduleCmd.Flags().BoolVar(&flagGantt, "gantt", false, "render a text gantt chart instead of a table")
	scheduleCmd.Flags().StringVar(&flagStoreDB, "store", "", "save the run to this sqlite database")
	scheduleCmd.Flags().IntVar(&flagVerbosity, "verbosity", 0, "scheduler trace verbosity (0-3)")
}

func runSchedule(bundlePath string) (*models.Result, error) {
	bundle, err := loader.Load(bundlePath)
	if err != nil {
		return nil, err
	}

	if flagAlgorithm != "" {
		bundle.Config.Algorithm = config.Algorithm(flagAlgorithm)
	}
	if flagStrategy != "" {
		bundle.Config.Strategy = config.Strategy(flagStrategy)
	}
	if flagVerbosity > 0 {
		bundle.Config.Verbosity = flagVerbosity
		bundle.Config.Logger = log.New(os.Stderr, "", 0)
	}

	if flagLockIn != "" {
		scheduleLock, err := lock.Read(flagLockIn)
		if err != nil {
			return nil, fmt.Errorf("read lock file: %w", err)
		}
		bundle.Lock = scheduleLock
	}

	return service.Schedule(bundle)
}
