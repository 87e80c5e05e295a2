package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/rafaelsamenezes/farol/pkg/gbf"
	"github.com/rafaelsamenezes/farol/pkg/interner"
)

// lengthBuckets are the upper bounds of the string-length histogram.
var lengthBuckets = []int{1, 2, 4, 8, 16, 32, 64, 128, 256}

// statsReport aggregates string-table statistics for one GBF file.
type statsReport struct {
	File            string   `json:"file"             yaml:"file"`
	InputBytes      int      `json:"input_bytes"      yaml:"input_bytes"`
	Roots           int      `json:"roots"            yaml:"roots"`
	DistinctStrings uint64   `json:"distinct_strings" yaml:"distinct_strings"`
	RepeatedRefs    uint64   `json:"repeated_refs"    yaml:"repeated_refs"`
	StringBytes     int      `json:"string_bytes"     yaml:"string_bytes"`
	Histogram       []bucket `json:"histogram"        yaml:"histogram"`
}

// bucket is one bar of the string-length histogram.
type bucket struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// StatsCommand holds the configuration for the stats command.
type StatsCommand struct {
	opts *GlobalOptions
	plot string
}

// NewStatsCommand creates and configures the stats command.
func NewStatsCommand(opts *GlobalOptions) *cobra.Command {
	sc := &StatsCommand{opts: opts}

	cobraCmd := &cobra.Command{
		Use:   "stats <file.gbf>",
		Short: "Report string table statistics for a goto-binary file",
		Args:  cobra.ExactArgs(1),
		RunE:  sc.run,
	}

	cobraCmd.Flags().StringVar(&sc.plot, "plot", "", "write an HTML histogram of string lengths to this file")

	return cobraCmd
}

func (sc *StatsCommand) run(cmd *cobra.Command, args []string) error {
	rt, err := sc.opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = rt.close(context.Background()) }()

	ctx, span := rt.providers.Tracer.Start(cmd.Context(), "farol.stats")
	defer span.End()

	done := rt.metrics.BeginOp(ctx, "stats")
	defer done()

	start := time.Now()
	err = sc.stats(ctx, rt, cmd.OutOrStdout(), args[0])
	rt.metrics.RecordOp(ctx, "stats", err, time.Since(start))

	return err
}

func (sc *StatsCommand) stats(ctx context.Context, rt *runtime, out io.Writer, path string) error {
	it, err := rt.newInterner()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	reader, err := gbf.Open(path, it)
	if err != nil {
		return err
	}

	forest, err := reader.ReadAll()
	if err != nil {
		return err
	}

	rt.metrics.RecordInput(ctx, reader.Size())
	rt.metrics.RecordInterner(ctx, it)

	report := buildStatsReport(path, reader.Size(), len(forest.Roots), it)

	fmt.Fprintf(out, "%s: %s input, %d irep roots\n", report.File,
		humanize.Bytes(uint64(report.InputBytes)), report.Roots) //nolint:gosec // sizes are non-negative
	fmt.Fprintf(out, "strings: %d distinct (%s), %d repeated references\n",
		report.DistinctStrings,
		humanize.Bytes(uint64(report.StringBytes)), //nolint:gosec // sizes are non-negative
		report.RepeatedRefs)

	for _, b := range report.Histogram {
		fmt.Fprintf(out, "  len %-6s %d\n", b.Label, b.Count)
	}

	if sc.plot != "" {
		return renderHistogramPlot(sc.plot, report)
	}

	return nil
}

// buildStatsReport computes the length histogram over the interned strings.
func buildStatsReport(path string, inputBytes, roots int, it *interner.Interner) statsReport {
	report := statsReport{
		File:            path,
		InputBytes:      inputBytes,
		Roots:           roots,
		DistinctStrings: it.Len(),
		RepeatedRefs:    it.Stats().Hits,
	}

	counts := make([]int, len(lengthBuckets)+1)

	for id := uint64(0); id < it.Len(); id++ {
		value, ok := it.Resolve(id)
		if !ok {
			break
		}

		report.StringBytes += len(value)
		counts[bucketIndex(len(value))]++
	}

	for i, upper := range lengthBuckets {
		report.Histogram = append(report.Histogram, bucket{
			Label: fmt.Sprintf("<=%d", upper),
			Count: counts[i],
		})
	}

	report.Histogram = append(report.Histogram, bucket{
		Label: fmt.Sprintf(">%d", lengthBuckets[len(lengthBuckets)-1]),
		Count: counts[len(lengthBuckets)],
	})

	return report
}

func bucketIndex(length int) int {
	for i, upper := range lengthBuckets {
		if length <= upper {
			return i
		}
	}

	return len(lengthBuckets)
}

// renderHistogramPlot writes the histogram as an HTML bar chart.
func renderHistogramPlot(path string, report statsReport) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "String length distribution",
			Subtitle: report.File,
		}),
	)

	labels := make([]string, 0, len(report.Histogram))
	values := make([]opts.BarData, 0, len(report.Histogram))

	for _, b := range report.Histogram {
		labels = append(labels, b.Label)
		values = append(values, opts.BarData{Value: b.Count})
	}

	bar.SetXAxis(labels).AddSeries("strings", values)

	page := components.NewPage()
	page.AddCharts(bar)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()

	err = page.Render(f)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}
