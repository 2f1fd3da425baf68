package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/storage"
)

var (
	runsHistory string
	runsLimit   int
)

func init() {
	runsCmd.Flags().StringVar(&runsHistory, "history", storage.HistoryFile, "Run history file")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Show at most this many recent runs (0 for all)")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List previous builds",
	Long: `List the builds recorded in the run history, newest last.

With a run id, show that run's full summary.

Examples:
  cobuy runs
  cobuy runs -n 5 --human
  cobuy runs k3v9x0q2ab`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.ReadHistory(config.ExpandPath(runsHistory))
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if len(args) == 1 {
		i, ok := storage.FindRun(runs, args[0])
		if !ok {
			exitWithError(ExitError, "run %s not found in %s", args[0], runsHistory)
		}
		if humanOutput {
			printRunHuman(runs[i])
		} else {
			outputJSON(runs[i])
		}
		return nil
	}

	if runsLimit > 0 && len(runs) > runsLimit {
		runs = runs[len(runs)-runsLimit:]
	}
	if runs == nil {
		runs = []storage.RunRecord{}
	}

	if humanOutput {
		if len(runs) == 0 {
			outputHuman("No runs recorded in %s\n", runsHistory)
		}
		for _, r := range runs {
			printRunHuman(r)
		}
	} else {
		outputJSON(runs)
	}
	return nil
}

func printRunHuman(r storage.RunRecord) {
	outputHuman("%s  %s  %-28s %s -> %s (%s)\n",
		r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Category, r.Input, r.Output, r.Duration)
}
