package report

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// LCOVOptions controls WriteLCOV.
type LCOVOptions struct {
	// WithBranches emits BRDA/BRF/BRH records for files with branches.
	WithBranches bool

	// TestName, if set, is written as a TN record before each file.
	TestName string

	// Comments are written as "# ..." lines at the top.
	Comments []string
}

// WriteLCOV writes c in LCOV tracefile format, one record per file in name
// order.
//
// LCOV carries no execution counts for set-based coverage, so executed
// lines and taken branches are reported with a count of 1.
func WriteLCOV(w io.Writer, c *Coverage, opts LCOVOptions) error {
	bw := bufio.NewWriter(w)

	for _, comment := range opts.Comments {
		fmt.Fprintf(bw, "# %s\n", comment)
	}
	for _, name := range c.FileNames() {
		writeLCOVFile(bw, name, c.Files[name], opts)
	}
	return bw.Flush()
}

func writeLCOVFile(w *bufio.Writer, name string, f *File, opts LCOVOptions) {
	if opts.TestName != "" {
		fmt.Fprintf(w, "TN:%s\n", opts.TestName)
	}
	fmt.Fprintf(w, "SF:%s\n", name)

	if opts.WithBranches && (len(f.ExecutedBranches) > 0 || len(f.MissingBranches) > 0) {
		missing := make(map[Branch]bool, len(f.MissingBranches))
		for _, br := range f.MissingBranches {
			missing[br] = true
		}

		all := make([]Branch, 0, len(f.ExecutedBranches)+len(f.MissingBranches))
		all = append(all, f.ExecutedBranches...)
		all = append(all, f.MissingBranches...)
		sortBranches(all)

		// Branch numbers restart at each source line; the block is always 0.
		num := 0
		for i, br := range all {
			if i > 0 && all[i-1][0] != br[0] {
				num = 0
			}
			taken := "1"
			if missing[br] {
				taken = "-"
			}
			fmt.Fprintf(w, "BRDA:%d,0,%d,%s\n", br[0], num, taken)
			num++
		}
		fmt.Fprintf(w, "BRF:%d\n", len(all))
		fmt.Fprintf(w, "BRH:%d\n", len(f.ExecutedBranches))
	}

	executed := make(map[int]bool, len(f.ExecutedLines))
	for _, l := range f.ExecutedLines {
		executed[l] = true
	}
	lines := make([]int, 0, len(f.ExecutedLines)+len(f.MissingLines))
	lines = append(lines, f.ExecutedLines...)
	lines = append(lines, f.MissingLines...)
	sort.Ints(lines)

	for _, l := range lines {
		hits := 0
		if executed[l] {
			hits = 1
		}
		fmt.Fprintf(w, "DA:%d,%d\n", l, hits)
	}
	fmt.Fprintf(w, "LF:%d\n", len(lines))
	fmt.Fprintf(w, "LH:%d\n", len(f.ExecutedLines))
	fmt.Fprintln(w, "end_of_record")
}
