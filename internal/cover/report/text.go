package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// TextOptions controls WriteText and WriteMarkdown.
type TextOptions struct {
	// MissingWidth wraps the Missing column at this many characters.
	// Default: 0 (no wrapping).
	MissingWidth int

	// SkipCovered omits files that are 100% covered.
	SkipCovered bool
}

// row is one line of the tabular report, before formatting.
type row []string

func header(branch bool) row {
	if branch {
		return row{"File", "#lines", "#l.miss", "#br.", "#br.miss", "brCov%", "totCov%", "Missing"}
	}
	return row{"File", "#lines", "#l.miss", "Cover%", "Missing"}
}

// rows builds the report body. The last column of each file row holds the
// unwrapped missing list.
func rows(c *Coverage, opts TextOptions) []row {
	branch := c.Meta.BranchCoverage
	var out []row

	for _, name := range c.FileNames() {
		f := c.Files[name]
		if opts.SkipCovered && f.Summary.PercentCovered == 100.0 {
			continue
		}

		execL, missL := len(f.ExecutedLines), len(f.MissingLines)
		r := row{name, itoa(execL + missL), itoa(missL)}
		if branch {
			execB, missB := len(f.ExecutedBranches), len(f.MissingBranches)
			r = append(r, itoa(execB+missB), itoa(missB), itoa(roundPct(percentOrZero(execB, execB+missB))))
		}
		r = append(r,
			itoa(roundPct(f.Summary.PercentCovered)),
			FormatMissing(f.MissingLines, f.ExecutedLines, f.MissingBranches))
		out = append(out, r)
	}

	if len(c.Files) > 1 {
		sep := make(row, len(header(branch)))
		sep[0] = "---"
		out = append(out, sep)

		s := c.Summary
		r := row{"(summary)", itoa(s.CoveredLines + s.MissingLines), itoa(s.MissingLines)}
		if branch {
			execB, missB := s.CoveredBranches, s.MissingBranches
			r = append(r, itoa(execB+missB), itoa(missB), itoa(roundPct(percentOrZero(execB, execB+missB))))
		}
		r = append(r, itoa(roundPct(s.PercentCovered)), "")
		out = append(out, r)
	}
	return out
}

// WriteText prints c as an aligned table for human consumption. Nothing is
// written for a document without files.
func WriteText(w io.Writer, c *Coverage, opts TextOptions) error {
	if len(c.Files) == 0 {
		return nil
	}

	hdr := header(c.Meta.BranchCoverage)
	dashes := make(row, len(hdr))
	for i, h := range hdr {
		dashes[i] = strings.Repeat("-", len(h))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	writeRow(tw, hdr)
	writeRow(tw, dashes)

	for _, r := range rows(c, opts) {
		last := len(r) - 1
		lines := wrapList(r[last], opts.MissingWidth)
		r[last] = lines[0]
		writeRow(tw, r)
		for _, cont := range lines[1:] {
			blank := make(row, len(r))
			blank[last] = cont
			writeRow(tw, blank)
		}
	}
	return tw.Flush()
}

func writeRow(tw *tabwriter.Writer, r row) {
	fmt.Fprintln(tw, strings.Join(r, "\t"))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// roundPct rounds half to even, the way percentages are rounded in reports.
func roundPct(p float64) int {
	return int(math.RoundToEven(p))
}

func percentOrZero(nom, den int) float64 {
	if den == 0 {
		return 0
	}
	return 100 * float64(nom) / float64(den)
}
