package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/config"
	"github.com/matsen/cobuy/internal/pipeline"
	"github.com/matsen/cobuy/internal/logger"
	"github.com/matsen/cobuy/internal/source"
	"github.com/matsen/cobuy/internal/storage"
	"github.com/matsen/cobuy/internal/viz"
)

var (
	buildCategory  string
	buildMonth     string
	buildDataDir   string
	buildInput     string
	buildOutput    string
	buildWeighting string
	buildShards    int
	buildSpill     bool
	buildSpillDir  string
	buildStrict    bool
	buildHistory   string
	buildNoHistory bool
)

func init() {
	addCategoryFlags(buildCmd, &buildCategory, &buildMonth, &buildDataDir)
	buildCmd.Flags().StringVarP(&buildInput, "input", "i", "", "Input records (default: <data-dir>/<month>-<category>-final.csv)")
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output document (default: <data-dir>/<category>.json)")
	buildCmd.Flags().StringVar(&buildWeighting, "weighting", "", "Edge weighting: jaccard or count")
	buildCmd.Flags().IntVar(&buildShards, "shards", 0, "Parallel aggregation workers")
	buildCmd.Flags().BoolVar(&buildSpill, "spill", false, "Keep baskets in on-disk SQLite stores instead of memory")
	buildCmd.Flags().StringVar(&buildSpillDir, "spill-dir", "", "Directory for spill databases (default: system temp)")
	buildCmd.Flags().BoolVar(&buildStrict, "strict", false, "Fail on the first malformed record")
	buildCmd.Flags().StringVar(&buildHistory, "history", storage.HistoryFile, "Run history file")
	buildCmd.Flags().BoolVar(&buildNoHistory, "no-history", false, "Do not record the run in the history file")
	rootCmd.AddCommand(buildCmd)
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the co-purchase graph document",
	Long: `Build the co-purchase graph document from a filtered record file.

Records with an empty brand are dropped. Every pair of products bought by
the same customer becomes an edge. Only the largest connected component
is exported, with edges weighted by neighbourhood overlap (jaccard) or by
the number of customers who bought both (count).

Examples:
  cobuy build --category electronics.smartphone
  cobuy build -i 2019-Oct-final.csv -o smartphone.json --weighting count
  cobuy build --spill --shards 4 --data-dir s3://my-bucket/2019-Oct`,
	RunE: runBuild,
}

// BuildResult is the summary printed after a build.
type BuildResult struct {
	pipeline.Stats
	Input  string `json:"input"`
	Output string `json:"output"`
}

// addCategoryFlags registers the flags that drive file naming.
func addCategoryFlags(cmd *cobra.Command, category, month, dataDir *string) {
	cmd.Flags().StringVarP(category, "category", "c", "", "Category code prefix (default: electronics)")
	cmd.Flags().StringVar(month, "month", "", "Month the data covers, e.g. 2019-Oct")
	cmd.Flags().StringVar(dataDir, "data-dir", "", "Directory or s3://bucket/prefix holding the data files")
}

// applyCategoryFlags copies changed naming flags onto cfg.
func applyCategoryFlags(cmd *cobra.Command, cfg *config.Config, category, month, dataDir string) {
	if cmd.Flags().Changed("category") {
		cfg.Category = category
	}
	if cmd.Flags().Changed("month") {
		cfg.Month = month
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = config.ExpandPath(dataDir)
	}
}

// applyBuildFlags overrides cfg with any build flags given on the command line.
func applyBuildFlags(cmd *cobra.Command, cfg *config.Config) {
	applyCategoryFlags(cmd, cfg, buildCategory, buildMonth, buildDataDir)
	if cmd.Flags().Changed("weighting") {
		cfg.Weighting = buildWeighting
	}
	if cmd.Flags().Changed("shards") {
		cfg.Shards = buildShards
	}
	if cmd.Flags().Changed("spill") {
		cfg.Spill.Enabled = buildSpill
	}
	if cmd.Flags().Changed("spill-dir") {
		cfg.Spill.Dir = buildSpillDir
		cfg.Spill.Enabled = true
	}
	if cmd.Flags().Changed("strict") {
		cfg.Strict = buildStrict
	}
}

// orDefault returns flag if set, else def.
func orDefault(flag, def string) string {
	if flag != "" {
		return config.ExpandPath(flag)
	}
	return def
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _ := mustLoadConfig()
	applyBuildFlags(cmd, cfg)
	mustValidateConfig(cfg)

	p, err := pipeline.New(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	input := orDefault(buildInput, cfg.InputPath())
	output := orDefault(buildOutput, cfg.OutputPath())

	r, err := source.Open(ctx, input, cfg.S3)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	defer r.Close()

	started := time.Now()
	res, err := p.Run(ctx, r)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}

	w, err := source.Create(ctx, output, cfg.S3)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := viz.WriteJSON(w, res.Document); err != nil {
		w.Close()
		exitWithError(ExitError, "writing %s: %v", output, err)
	}
	if err := w.Close(); err != nil {
		exitWithError(ExitError, "writing %s: %v", output, err)
	}

	result := BuildResult{Stats: res.Stats, Input: input, Output: output}
	if !buildNoHistory {
		recordRun(buildHistory, cfg.Category, started, result)
	}
	if humanOutput {
		printBuildHuman(result)
	} else {
		outputJSON(result)
	}
	return nil
}

func printBuildHuman(r BuildResult) {
	outputHuman("Built %s from %s (run %s)\n", r.Output, r.Input, r.RunID)
	outputHuman("  Rows:        %s read, %s malformed, %s without brand\n", comma(r.Rows), comma(r.Malformed), comma(r.EmptyBrand))
	outputHuman("  Baskets:     %s customers, %s products\n", comma(r.Customers), comma(r.Products))
	outputHuman("  Graph:       %s edges in %s components\n", comma(r.Edges), comma(r.Components))
	outputHuman("  Exported:    %s nodes, %s links (%s weighting)\n", comma(r.LargestSize), comma(r.Links), r.Weighting)
}

// recordRun appends the build to the run history. Failures are logged, not fatal.
func recordRun(path, category string, started time.Time, r BuildResult) {
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		logger.Warn("encoding run stats", "err", err)
		return
	}
	err = storage.AppendHistory(config.ExpandPath(path), storage.RunRecord{
		RunID:     r.RunID,
		StartedAt: started.UTC(),
		Duration:  time.Since(started).Round(time.Millisecond).String(),
		Category:  category,
		Input:     r.Input,
		Output:    r.Output,
		Stats:     stats,
	})
	if err != nil {
		logger.Warn("recording run history", "path", path, "err", err)
	}
}
