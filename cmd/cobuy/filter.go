package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/prep"
	"github.com/matsen/cobuy/internal/record"
	"github.com/matsen/cobuy/internal/source"
)

var (
	filterCategory string
	filterMonth    string
	filterDataDir  string
	filterInput    string
	filterOutput   string
)

func init() {
	addCategoryFlags(filterCmd, &filterCategory, &filterMonth, &filterDataDir)
	filterCmd.Flags().StringVarP(&filterInput, "input", "i", "", "Raw records (default: <data-dir>/<month>.csv)")
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "Filtered records (default: <data-dir>/<month>-<category>.csv)")
	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep only records of one category",
	Long: `Copy the records whose category_code starts with the category to a new file.

Records are written unchanged. A raw month log is large, so progress is
logged every million rows.

Examples:
  cobuy filter --category electronics.smartphone
  cobuy filter -i 2019-Oct.csv -o smartphones.csv -c electronics.smartphone`,
	RunE: runFilter,
}

// FilterResult is the summary printed after filtering.
type FilterResult struct {
	prep.FilterStats
	Category string `json:"category"`
	Input    string `json:"input"`
	Output   string `json:"output"`
}

func runFilter(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _ := mustLoadConfig()
	applyCategoryFlags(cmd, cfg, filterCategory, filterMonth, filterDataDir)
	mustValidateConfig(cfg)

	input := orDefault(filterInput, cfg.RawPath())
	output := orDefault(filterOutput, cfg.FilteredPath())

	r, err := source.Open(ctx, input, cfg.S3)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	defer r.Close()

	w, err := source.Create(ctx, output, cfg.S3)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	stats, err := prep.FilterCategory(ctx, r, w, cfg.Category, record.ReaderOptions{
		Layout: record.LayoutFromConfig(cfg.Columns),
		Strict: cfg.Strict,
	})
	if err != nil {
		w.Close()
		exitWithError(exitCodeFor(err), "%v", err)
	}
	if err := w.Close(); err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}

	result := FilterResult{FilterStats: stats, Category: cfg.Category, Input: input, Output: output}
	if humanOutput {
		outputHuman("Kept %s of %s records in %s -> %s\n", comma(stats.Kept), comma(stats.Read), cfg.Category, output)
		if stats.Malformed > 0 {
			outputHuman("Skipped %s malformed records\n", comma(stats.Malformed))
		}
	} else {
		outputJSON(result)
	}
	return nil
}
