package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// WriteMarkdown writes c as a GitHub-flavored markdown table.
func WriteMarkdown(w io.Writer, c *Coverage, opts TextOptions) error {
	if len(c.Files) == 0 {
		return nil
	}

	var b strings.Builder
	hdr := header(c.Meta.BranchCoverage)
	writeMarkdownRow(&b, hdr)

	align := make(row, len(hdr))
	for i := range align {
		switch {
		case i == 0 || i == len(hdr)-1:
			align[i] = ":---"
		default:
			align[i] = "---:"
		}
	}
	writeMarkdownRow(&b, align)

	for _, r := range rows(c, opts) {
		if r[0] == "---" {
			continue
		}
		if r[0] == "(summary)" {
			r[0] = "**(summary)**"
		}
		writeMarkdownRow(&b, r)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMarkdownRow(b *strings.Builder, r row) {
	b.WriteString("|")
	for _, cell := range r {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(cell, "|", `\|`))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

// WriteHTML renders the markdown report to a standalone HTML page.
func WriteHTML(w io.Writer, c *Coverage, opts TextOptions) error {
	var src bytes.Buffer
	fmt.Fprintf(&src, "# Coverage report\n\n")
	fmt.Fprintf(&src, "%s %s", c.Meta.Software, c.Meta.Version)
	if c.Meta.Timestamp != "" {
		fmt.Fprintf(&src, ", %s", c.Meta.Timestamp)
	}
	fmt.Fprintf(&src, "\n\nTotal coverage: **%d%%**\n\n", roundPct(c.Summary.PercentCovered))
	if err := WriteMarkdown(&src, c, opts); err != nil {
		return err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if _, err := io.WriteString(w, htmlHead); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlTail)
	return err
}

const htmlHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Coverage report</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; }
th, td { padding: 2px 8px; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
`

const htmlTail = `</body>
</html>
`
