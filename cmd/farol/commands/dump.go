package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rafaelsamenezes/farol/pkg/gbf"
	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/irep"
)

// maxTableValue truncates long strings in table output.
const maxTableValue = 60

// ErrUnknownFormat is returned for output formats outside table, yaml, json.
var ErrUnknownFormat = errors.New("unknown output format")

// stringEntry is one interned string in a dump or stats report.
type stringEntry struct {
	ID     uint64 `json:"id"     yaml:"id"`
	Length int    `json:"length" yaml:"length"`
	Value  string `json:"value"  yaml:"value"`
}

// dumpReport is the serializable result of parsing one GBF file.
type dumpReport struct {
	File            string        `json:"file"             yaml:"file"`
	InputBytes      int           `json:"input_bytes"      yaml:"input_bytes"`
	Roots           int           `json:"roots"            yaml:"roots"`
	DistinctStrings uint64        `json:"distinct_strings" yaml:"distinct_strings"`
	RepeatedRefs    uint64        `json:"repeated_refs"    yaml:"repeated_refs"`
	Strings         []stringEntry `json:"strings"          yaml:"strings"`
}

// DumpCommand holds the configuration for the dump command.
type DumpCommand struct {
	opts   *GlobalOptions
	format string
	trees  bool
}

// NewDumpCommand creates and configures the dump command.
func NewDumpCommand(opts *GlobalOptions) *cobra.Command {
	dc := &DumpCommand{opts: opts}

	cobraCmd := &cobra.Command{
		Use:   "dump <file.gbf>",
		Short: "Parse a goto-binary file and print its contents",
		Long: `Parse a goto-binary file and print its string table and irep roots.

Files with an .lz4 suffix are decompressed transparently.`,
		Args: cobra.ExactArgs(1),
		RunE: dc.run,
	}

	cobraCmd.Flags().StringVarP(&dc.format, "format", "f", "", "output format (table, yaml, json; default from config)")
	cobraCmd.Flags().BoolVar(&dc.trees, "trees", false, "also print every irep root as an indented tree (table format only)")

	return cobraCmd
}

func (dc *DumpCommand) run(cmd *cobra.Command, args []string) error {
	rt, err := dc.opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = rt.close(context.Background()) }()

	ctx, span := rt.providers.Tracer.Start(cmd.Context(), "farol.dump")
	defer span.End()

	done := rt.metrics.BeginOp(ctx, "dump")
	defer done()

	start := time.Now()
	err = dc.dump(ctx, rt, cmd.OutOrStdout(), args[0])
	rt.metrics.RecordOp(ctx, "dump", err, time.Since(start))

	return err
}

func (dc *DumpCommand) dump(ctx context.Context, rt *runtime, out io.Writer, path string) error {
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

	report := dumpReport{
		File:            path,
		InputBytes:      reader.Size(),
		Roots:           len(forest.Roots),
		DistinctStrings: it.Len(),
		RepeatedRefs:    it.Stats().Hits,
		Strings:         stringTable(it),
	}

	format := dc.format
	if format == "" {
		format = rt.cfg.Output.Format
	}

	switch format {
	case "table":
		renderDumpTables(out, report)

		if dc.trees {
			return renderTrees(out, forest, it)
		}

		return nil
	case "yaml":
		return writeYAML(out, report)
	case "json":
		return writeJSON(out, report)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// stringTable snapshots the interner contents in identifier order.
func stringTable(it *interner.Interner) []stringEntry {
	entries := make([]stringEntry, 0, it.Len())

	for id := uint64(0); id < it.Len(); id++ {
		value, ok := it.Resolve(id)
		if !ok {
			break
		}

		entries = append(entries, stringEntry{ID: id, Length: len(value), Value: value})
	}

	return entries
}

func renderDumpTables(out io.Writer, report dumpReport) {
	fmt.Fprintf(out, "%s: %s, %d irep roots, %s distinct strings (%s repeated refs)\n\n",
		report.File,
		humanize.Bytes(uint64(report.InputBytes)), //nolint:gosec // sizes are non-negative
		report.Roots,
		humanize.Comma(int64(report.DistinctStrings)), //nolint:gosec // bounded by input size
		humanize.Comma(int64(report.RepeatedRefs)),    //nolint:gosec // bounded by input size
	)

	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID", "LEN", "STRING"})

	for _, entry := range report.Strings {
		tw.AppendRow(table.Row{entry.ID, entry.Length, truncate(entry.Value, maxTableValue)})
	}

	tw.Render()
}

func renderTrees(out io.Writer, forest *irep.Forest, it *interner.Interner) error {
	for i, root := range forest.Roots {
		fmt.Fprintf(out, "\nroot %d:\n", i)

		err := root.Render(out, it)
		if err != nil {
			return err
		}
	}

	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}

func writeYAML(out io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	return nil
}
