package commands

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rafaelsamenezes/farol/pkg/gbf"
	"github.com/rafaelsamenezes/farol/pkg/interner"
	"github.com/rafaelsamenezes/farol/pkg/irep"
	"github.com/rafaelsamenezes/farol/pkg/strpool"
)

// selfTestCheck is one named check of the built-in suite.
type selfTestCheck struct {
	name string
	fn   func() error
}

// NewSelfTestCommand creates the test command. It exits with the number
// of failed checks so scripts can gate on it.
func NewSelfTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the built-in self-test suite",
		Run: func(cmd *cobra.Command, _ []string) {
			failures := runSuite(cmd.OutOrStdout())
			if failures > 0 {
				os.Exit(int(failures)) //nolint:gosec // failure count is small
			}
		},
	}
}

// runSuite executes every check, prints per-check results, and returns
// the failure count.
func runSuite(w io.Writer) uint64 {
	ok := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	var failures uint64

	for _, check := range suiteChecks() {
		fmt.Fprintf(w, "- %s... ", check.name)

		err := check.fn()
		if err != nil {
			failures++

			fmt.Fprintf(w, "%s: %v\n", fail("FAIL"), err)

			continue
		}

		fmt.Fprintf(w, "%s\n", ok("OK"))
	}

	fmt.Fprintf(w, "\nIdentified %d failures\n", failures)

	return failures
}

func suiteChecks() []selfTestCheck {
	return []selfTestCheck{
		{name: "interner starts empty with capacity 16", fn: checkInternerInitial},
		{name: "first string is assigned id 0", fn: checkInternerFirstID},
		{name: "repeated strings share one id", fn: checkInternerDedup},
		{name: "interner grows past its initial capacity", fn: checkInternerGrowth},
		{name: "interner refuses use after close", fn: checkInternerClose},
		{name: "string pool round trip", fn: checkStrpoolRoundTrip},
		{name: "goto-binary round trip", fn: checkGBFRoundTrip},
	}
}

func checkInternerInitial() error {
	it, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	if it.Len() != 0 {
		return fmt.Errorf("expected empty interner, got %d entries", it.Len())
	}

	if it.Cap() != 16 {
		return fmt.Errorf("expected capacity 16, got %d", it.Cap())
	}

	return nil
}

func checkInternerFirstID() error {
	it, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	id, err := it.Intern("hello")
	if err != nil {
		return err
	}

	if id != 0 {
		return fmt.Errorf("expected id 0, got %d", id)
	}

	return nil
}

func checkInternerDedup() error {
	it, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	first, err := it.Intern("hello")
	if err != nil {
		return err
	}

	second, err := it.Intern("hello")
	if err != nil {
		return err
	}

	if first != second {
		return fmt.Errorf("expected one id for duplicates, got %d and %d", first, second)
	}

	if it.Len() != 1 {
		return fmt.Errorf("expected 1 entry, got %d", it.Len())
	}

	return nil
}

func checkInternerGrowth() error {
	it, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()

	const total = 64

	for i := 0; i < total; i++ {
		id, internErr := it.Intern(fmt.Sprintf("string-%d", i))
		if internErr != nil {
			return internErr
		}

		if id != uint64(i) {
			return fmt.Errorf("expected id %d, got %d", i, id)
		}
	}

	for i := 0; i < total; i++ {
		value, found := it.Resolve(uint64(i))
		if !found {
			return fmt.Errorf("id %d lost after growth", i)
		}

		if want := fmt.Sprintf("string-%d", i); value != want {
			return fmt.Errorf("id %d resolved to %q, want %q", i, value, want)
		}
	}

	return nil
}

func checkInternerClose() error {
	it, err := interner.New()
	if err != nil {
		return err
	}

	err = it.Close()
	if err != nil {
		return err
	}

	_, err = it.Intern("late")
	if err == nil {
		return fmt.Errorf("expected error interning after close")
	}

	err = it.Close()
	if err == nil {
		return fmt.Errorf("expected error closing twice")
	}

	return nil
}

func checkStrpoolRoundTrip() error {
	pool := strpool.New()
	defer pool.Free()

	id, err := pool.Add("lighthouse")
	if err != nil {
		return err
	}

	value, err := pool.Get(id)
	if err != nil {
		return err
	}

	if value != "lighthouse" {
		return fmt.Errorf("expected %q back, got %q", "lighthouse", value)
	}

	return nil
}

func checkGBFRoundTrip() error {
	source, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	root, err := irep.New("code", source)
	if err != nil {
		return err
	}

	child, err := irep.New("symbol", source)
	if err != nil {
		return err
	}

	root.Sub = append(root.Sub, child)

	forest := &irep.Forest{Roots: []*irep.Node{root}, Strings: source}

	var buf bytes.Buffer

	writer := gbf.NewWriter(&buf, source)

	err = writer.WriteForest(forest)
	if err != nil {
		return err
	}

	sink, err := interner.New()
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	decoded, err := gbf.NewReader(buf.Bytes(), sink).ReadAll()
	if err != nil {
		return err
	}

	if len(decoded.Roots) != 1 {
		return fmt.Errorf("expected 1 root, got %d", len(decoded.Roots))
	}

	id, found := sink.Resolve(decoded.Roots[0].ID)
	if !found || id != "code" {
		return fmt.Errorf("expected root id %q, got %q", "code", id)
	}

	if len(decoded.Roots[0].Sub) != 1 {
		return fmt.Errorf("expected 1 sub node, got %d", len(decoded.Roots[0].Sub))
	}

	return nil
}
