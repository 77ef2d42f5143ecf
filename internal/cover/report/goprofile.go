package report

import (
	"bufio"
	"fmt"
	"io"

	"golang.org/x/tools/cover"
)

// WriteGoProfile writes c as a Go cover profile in "set" mode, one
// single-statement block per line. Branches are not representable and are
// dropped.
func WriteGoProfile(w io.Writer, c *Coverage) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "mode: set")

	for _, name := range c.FileNames() {
		f := c.Files[name]
		executed := make(map[int]bool, len(f.ExecutedLines))
		for _, l := range f.ExecutedLines {
			executed[l] = true
		}
		for _, l := range mergeSorted(f.ExecutedLines, f.MissingLines) {
			count := 0
			if executed[l] {
				count = 1
			}
			fmt.Fprintf(bw, "%s:%d.1,%d.2 1 %d\n", name, l, l, count)
		}
	}
	return bw.Flush()
}

// ReadGoProfiles converts the Go cover profile at path into a coverage
// document. Every line spanned by a block becomes a code line; it is executed
// if any block covering it ran.
func ReadGoProfiles(path string) (*Coverage, error) {
	profiles, err := cover.ParseProfiles(path)
	if err != nil {
		return nil, fmt.Errorf("parse cover profile: %w", err)
	}
	return FromGoProfiles(profiles), nil
}

// FromGoProfiles converts parsed Go cover profiles.
func FromGoProfiles(profiles []*cover.Profile) *Coverage {
	c := &Coverage{
		Meta:  Meta{Software: Software},
		Files: make(map[string]*File, len(profiles)),
	}

	for _, p := range profiles {
		executed := make(map[int]bool)
		code := make(map[int]bool)
		for _, b := range p.Blocks {
			for l := b.StartLine; l <= b.EndLine; l++ {
				code[l] = true
				if b.Count > 0 {
					executed[l] = true
				}
			}
		}

		missing := make(map[int]bool, len(code))
		for l := range code {
			if !executed[l] {
				missing[l] = true
			}
		}
		c.Files[p.FileName] = &File{
			ExecutedLines: sortedInts(executed),
			MissingLines:  sortedInts(missing),
		}
	}

	AddSummaries(c)
	return c
}

// mergeSorted returns the union of two ascending, disjoint slices.
func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
