package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/rafaelsamenezes/farol/pkg/gbf"
)

// diffArgCount is the number of arguments expected by the diff command.
const diffArgCount = 2

// ErrUnknownDiffFormat is returned for diff formats outside summary, unified.
var ErrUnknownDiffFormat = errors.New("unknown diff format")

// diffStats summarizes a string-table comparison.
type diffStats struct {
	Added   int
	Removed int
	Common  int
}

// DiffCommand holds the configuration for the diff command.
type DiffCommand struct {
	opts   *GlobalOptions
	format string
}

// NewDiffCommand creates and configures the diff command.
func NewDiffCommand(opts *GlobalOptions) *cobra.Command {
	dc := &DiffCommand{opts: opts}

	cobraCmd := &cobra.Command{
		Use:   "diff <a.gbf> <b.gbf>",
		Short: "Compare the string tables of two goto-binary files",
		Long: `Compare the interned string tables of two goto-binary files.

Examples:
  farol diff old.gbf new.gbf             # Summary of added/removed strings
  farol diff -f unified old.gbf new.gbf  # Line diff of the two tables`,
		Args: cobra.ExactArgs(diffArgCount),
		RunE: dc.run,
	}

	cobraCmd.Flags().StringVarP(&dc.format, "format", "f", "summary", "output format (summary, unified)")

	return cobraCmd
}

func (dc *DiffCommand) run(cmd *cobra.Command, args []string) error {
	rt, err := dc.opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = rt.close(context.Background()) }()

	ctx, span := rt.providers.Tracer.Start(cmd.Context(), "farol.diff")
	defer span.End()

	done := rt.metrics.BeginOp(ctx, "diff")
	defer done()

	start := time.Now()
	err = dc.diff(ctx, rt, cmd.OutOrStdout(), args[0], args[1])
	rt.metrics.RecordOp(ctx, "diff", err, time.Since(start))

	return err
}

func (dc *DiffCommand) diff(ctx context.Context, rt *runtime, out io.Writer, pathA, pathB string) error {
	tableA, err := dc.readStrings(ctx, rt, pathA)
	if err != nil {
		return err
	}

	tableB, err := dc.readStrings(ctx, rt, pathB)
	if err != nil {
		return err
	}

	diffs := diffLines(strings.Join(tableA, "\n"), strings.Join(tableB, "\n"))

	switch dc.format {
	case "summary":
		stats := computeDiffStats(diffs)
		fmt.Fprintf(out, "%s -> %s: %d added, %d removed, %d unchanged\n",
			pathA, pathB, stats.Added, stats.Removed, stats.Common)

		return nil
	case "unified":
		renderUnified(out, diffs)

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDiffFormat, dc.format)
	}
}

// readStrings parses path and returns its interned strings in identifier order.
func (dc *DiffCommand) readStrings(ctx context.Context, rt *runtime, path string) ([]string, error) {
	it, err := rt.newInterner()
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	reader, err := gbf.Open(path, it)
	if err != nil {
		return nil, err
	}

	_, err = reader.ReadAll()
	if err != nil {
		return nil, err
	}

	rt.metrics.RecordInput(ctx, reader.Size())
	rt.metrics.RecordInterner(ctx, it)

	out := make([]string, 0, it.Len())

	for id := uint64(0); id < it.Len(); id++ {
		value, ok := it.Resolve(id)
		if !ok {
			break
		}

		out = append(out, value)
	}

	return out, nil
}

// diffLines produces a line-granular diff of two string-table listings.
func diffLines(a, b string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()

	runesA, runesB, lines := dmp.DiffLinesToRunes(a, b)
	diffs := dmp.DiffMainRunes(runesA, runesB, false)

	return dmp.DiffCharsToLines(diffs, lines)
}

// computeDiffStats counts added, removed, and unchanged lines.
func computeDiffStats(diffs []diffmatchpatch.Diff) diffStats {
	var stats diffStats

	for _, d := range diffs {
		lines := countLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += lines
		case diffmatchpatch.DiffDelete:
			stats.Removed += lines
		case diffmatchpatch.DiffEqual:
			stats.Common += lines
		}
	}

	return stats
}

func renderUnified(out io.Writer, diffs []diffmatchpatch.Diff) {
	for _, d := range diffs {
		prefix := " "

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			fmt.Fprintf(out, "%s%s\n", prefix, line)
		}
	}
}

func countLines(text string) int {
	if text == "" {
		return 0
	}

	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}
