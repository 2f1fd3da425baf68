package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matsen/cobuy/internal/source"
	"github.com/matsen/cobuy/internal/viz"
)

var (
	vizInput    string
	vizOutput   string
	vizTitle    string
	vizDistance string
)

func init() {
	vizCmd.Flags().StringVarP(&vizInput, "input", "i", "", "Graph document (default: <data-dir>/<category>.json)")
	vizCmd.Flags().StringVarP(&vizOutput, "output", "o", "", "Output file path (default: stdout)")
	vizCmd.Flags().StringVar(&vizTitle, "title", "", "Page title (default: the category)")
	vizCmd.Flags().StringVar(&vizDistance, "distance", "value", "Link distance: value or fixed")
	rootCmd.AddCommand(vizCmd)
}

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Generate a co-purchase graph visualization",
	Long: `Generate an interactive HTML page for a graph document.

Nodes are coloured by brand. Layout runs in the browser with d3-force,
using the settings stored in the document. Click a product to highlight
its neighbours.

Examples:
  # Generate HTML to stdout
  cobuy viz > graph.html

  # Generate to file
  cobuy viz -i electronics-smartphone.json -o graph.html

  # Ignore link values when laying out
  cobuy viz --distance fixed -o graph.html`,
	RunE: runViz,
}

func runViz(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, _ := mustLoadConfig()

	input := orDefault(vizInput, cfg.OutputPath())
	data, err := source.ReadAll(ctx, input, cfg.S3)
	if err != nil {
		exitWithError(ExitConfigError, "reading %s: %v", input, err)
	}
	doc, err := viz.ReadJSON(bytes.NewReader(data))
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	title := vizTitle
	if title == "" {
		title = cfg.Category
	}

	// Generate HTML (validates options internally)
	html, err := viz.GenerateHTML(doc, viz.HTMLOptions{Title: title, Distance: vizDistance})
	if err != nil {
		return fmt.Errorf("generating HTML: %w", err)
	}

	// Output
	if vizOutput == "" {
		fmt.Print(html)
		return nil
	}

	w, err := source.Create(ctx, vizOutput, cfg.S3)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, html); err != nil {
		w.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	if humanOutput {
		fmt.Printf("Visualization written to %s\n", vizOutput)
	} else {
		outputJSON(StatusResponse{Status: "written", Path: vizOutput})
	}
	return nil
}
