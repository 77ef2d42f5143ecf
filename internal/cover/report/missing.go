package report

import (
	"sort"
	"strconv"
	"strings"
)

// FormatMissing renders missing lines as ranges, interleaved with missing
// branches.
//
// A range extends across lines that are not code (comments, blank lines) as
// long as no executed line falls inside it. Branches touching a missing line
// are implied by that line and are left out. Both inputs are expected in
// ascending order.
//
// Example:
//
//	FormatMissing([]int{3, 4, 6, 10}, []int{1, 2, 8}, []Branch{{1, 3}, {8, 0}})
//	// "3-6, 8->exit, 10"
func FormatMissing(missingLines, executedLines []int, missingBranches []Branch) string {
	missing := make(map[int]bool, len(missingLines))
	for _, l := range missingLines {
		missing[l] = true
	}
	executed := make(map[int]bool, len(executedLines))
	for _, l := range executedLines {
		executed[l] = true
	}

	branches := make([]Branch, 0, len(missingBranches))
	for _, br := range missingBranches {
		if !missing[br[0]] && !missing[br[1]] {
			branches = append(branches, br)
		}
	}

	var parts []string
	for i := 0; i < len(missingLines); {
		a := missingLines[i]
		for len(branches) > 0 && branches[0][0] < a {
			parts = append(parts, branches[0].String())
			branches = branches[1:]
		}

		b := a
		i++
		for i < len(missingLines) && !executedBetween(executed, b, missingLines[i]) {
			b = missingLines[i]
			i++
		}

		if a == b {
			parts = append(parts, strconv.Itoa(a))
		} else {
			parts = append(parts, strconv.Itoa(a)+"-"+strconv.Itoa(b))
		}
	}
	for _, br := range branches {
		parts = append(parts, br.String())
	}

	return strings.Join(parts, ", ")
}

// executedBetween reports whether any line in (from, to] was executed.
func executedBetween(executed map[int]bool, from, to int) bool {
	for l := from + 1; l <= to; l++ {
		if executed[l] {
			return true
		}
	}
	return false
}

// wrapList splits a comma-separated list into lines no wider than width,
// breaking only after commas. A width <= 0 disables wrapping.
func wrapList(s string, width int) []string {
	if width <= 0 || len(s) <= width {
		return []string{s}
	}

	items := strings.Split(s, ", ")
	var lines []string
	var cur strings.Builder
	for i, item := range items {
		piece := item
		if i < len(items)-1 {
			piece += ","
		}
		if cur.Len() > 0 && cur.Len()+1+len(piece) > width {
			lines = append(lines, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(piece)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// sortBranches orders branches by source, then destination.
func sortBranches(brs []Branch) {
	sort.Slice(brs, func(i, j int) bool { return lessBranch(brs[i], brs[j]) })
}
