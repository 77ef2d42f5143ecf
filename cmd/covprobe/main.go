// Package main implements the covprobe CLI tool.
//
// The covprobe tool works on coverage documents written by covprobe
// sessions. It can:
//
//  1. Print them as text, JSON, markdown or HTML reports
//  2. Merge documents from several runs into one
//  3. Convert them to LCOV tracefiles
//  4. Import Go cover profiles
//
// Usage:
//
//	covprobe report cov.json              # Print a coverage table
//	covprobe merge -o all.json a.json b.json
//	covprobe lcov -o cov.info cov.json
//	covprobe import -o cov.json cover.out
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kolkov/covprobe/covprobe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command := args[0]

	switch command {
	case "report":
		return reportCommand(args[1:], stdout, stderr)
	case "merge":
		return mergeCommand(args[1:], stdout, stderr)
	case "lcov":
		return lcovCommand(args[1:], stdout, stderr)
	case "import":
		return importCommand(args[1:], stdout, stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "covprobe version %s\n", covprobe.Version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `covprobe - self-deinstrumenting coverage tool

USAGE:
    covprobe <command> [arguments]

COMMANDS:
    report     Print a coverage report
    merge      Merge coverage documents
    lcov       Convert coverage to an LCOV tracefile
    import     Convert a Go cover profile to a coverage document
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Text report, omitting fully covered files
    covprobe report --skip-covered cov.json

    # Fail (exit code 2) when total coverage is below 80%
    covprobe report --fail-under 80 cov.json

    # Merge per-process documents
    covprobe merge -o all.json cov-*.json

    # Markdown report for a pull request comment
    covprobe report --markdown cov.json

COMMON FLAGS:
    -o FILE    Write output to FILE instead of stdout
    -v         Log progress to stderr

`)
}
