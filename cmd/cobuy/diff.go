package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/source"
	"github.com/matsen/cobuy/internal/viz"
)

func init() {
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <a.json> <b.json>",
	Short: "Compare two graph documents",
	Long: `Compare two graph documents ignoring node and link order.

Reports nodes and links present in only one document and links whose
values differ. Exits 0 when the documents match and 3 when they differ.

Examples:
  cobuy diff electronics-smartphone.json reference/electronics-smartphone.json
  cobuy diff a.json s3://my-bucket/runs/a.json --human`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

// DiffResult is the output of the diff command.
type DiffResult struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Equal bool   `json:"equal"`
	*viz.Diff
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _ := mustLoadConfig()

	a, err := source.ReadAll(ctx, args[0], cfg.S3)
	if err != nil {
		exitWithError(ExitConfigError, "reading %s: %v", args[0], err)
	}
	b, err := source.ReadAll(ctx, args[1], cfg.S3)
	if err != nil {
		exitWithError(ExitConfigError, "reading %s: %v", args[1], err)
	}

	diff, err := viz.Compare(a, b)
	if err != nil {
		if errors.Is(err, viz.ErrInvalidDocument) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "%v", err)
	}

	result := DiffResult{A: args[0], B: args[1], Equal: diff.IsEmpty(), Diff: diff}
	if humanOutput {
		printDiffHuman(result)
	} else {
		outputJSON(result)
	}

	if !result.Equal {
		os.Exit(ExitDataError)
	}
	return nil
}

func printDiffHuman(r DiffResult) {
	if r.Equal {
		fmt.Println("Documents are equivalent.")
		return
	}

	fmt.Printf("Differences between %s (A) and %s (B):\n", r.A, r.B)
	printIDs := func(label string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Printf("\n%s (%d):\n", label, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
	printIDs("Nodes only in A", r.NodesOnlyInA)
	printIDs("Nodes only in B", r.NodesOnlyInB)
	printIDs("Links only in A", r.LinksOnlyInA)
	printIDs("Links only in B", r.LinksOnlyInB)

	if len(r.ValueMismatches) > 0 {
		fmt.Printf("\nValue mismatches (%d):\n", len(r.ValueMismatches))
		for _, m := range r.ValueMismatches {
			fmt.Printf("  %s: %g vs %g\n", m.Link, m.A, m.B)
		}
	}
}
