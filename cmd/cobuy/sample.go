package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/prep"
	"github.com/matsen/cobuy/internal/record"
	"github.com/matsen/cobuy/internal/source"
)

// sampleTopN is how many of the heaviest customers are reported.
const sampleTopN = 10

var (
	sampleCategory string
	sampleMonth    string
	sampleDataDir  string
	sampleInput    string
	sampleOutput   string
	sampleMin      int
)

func init() {
	addCategoryFlags(sampleCmd, &sampleCategory, &sampleMonth, &sampleDataDir)
	sampleCmd.Flags().StringVarP(&sampleInput, "input", "i", "", "Filtered records (default: <data-dir>/<month>-<category>.csv)")
	sampleCmd.Flags().StringVarP(&sampleOutput, "output", "o", "", "Sampled records (default: <data-dir>/<month>-<category>-final.csv)")
	sampleCmd.Flags().IntVar(&sampleMin, "min", 0, "Minimum records per customer (default: 500)")
	rootCmd.AddCommand(sampleCmd)
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Keep only customers with many records",
	Long: `Keep the records of customers with at least --min records.

The input is read twice: once to count records per customer, once to
write the selected customers' records.

Examples:
  cobuy sample --category electronics.smartphone
  cobuy sample -i smartphones.csv -o final.csv --min 200`,
	RunE: runSample,
}

// SampleResult is the summary printed after sampling.
type SampleResult struct {
	Input     string          `json:"input"`
	Output    string          `json:"output"`
	Threshold int             `json:"threshold"`
	Read      int             `json:"read"`
	Customers int             `json:"customers"`
	Selected  int             `json:"selected"`
	Kept      int             `json:"kept"`
	Top       []prep.Customer `json:"top"`
}

func runSample(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _ := mustLoadConfig()
	applyCategoryFlags(cmd, cfg, sampleCategory, sampleMonth, sampleDataDir)
	if cmd.Flags().Changed("min") {
		cfg.MinCustomerRecords = sampleMin
	}
	mustValidateConfig(cfg)

	input := orDefault(sampleInput, cfg.FilteredPath())
	output := orDefault(sampleOutput, cfg.InputPath())

	open := func() (io.ReadCloser, error) {
		return source.Open(ctx, input, cfg.S3)
	}
	w, err := source.Create(ctx, output, cfg.S3)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	stats, err := prep.SampleCustomers(ctx, open, w, cfg.MinCustomerRecords, record.ReaderOptions{
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

	top := stats.Selected
	if len(top) > sampleTopN {
		top = top[:sampleTopN]
	}
	result := SampleResult{
		Input:     input,
		Output:    output,
		Threshold: cfg.MinCustomerRecords,
		Read:      stats.Read,
		Customers: stats.Customers,
		Selected:  len(stats.Selected),
		Kept:      stats.Kept,
		Top:       top,
	}
	if humanOutput {
		outputHuman("Selected %s of %s customers with >= %d records\n", comma(result.Selected), comma(result.Customers), result.Threshold)
		outputHuman("Wrote %s of %s records to %s\n", comma(result.Kept), comma(result.Read), output)
		for _, c := range top {
			outputHuman("  %-12s %s\n", c.UserID, comma(c.Records))
		}
	} else {
		outputJSON(result)
	}
	return nil
}
