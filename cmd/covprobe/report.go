// report.go implements the 'covprobe report' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/covprobe/internal/cover/report"
)

// exitUnderThreshold is returned when --fail-under is not met.
const exitUnderThreshold = 2

// reportFormat selects the report renderer.
type reportFormat int

const (
	formatText reportFormat = iota
	formatJSON
	formatMarkdown
	formatHTML
)

// reportConfig holds configuration for the report command.
type reportConfig struct {
	// Coverage documents to merge and report
	inputs []string

	format reportFormat

	// Text and markdown options
	text report.TextOptions

	// Overall percentage below which the command exits with code 2
	failUnder float64

	// Module root for import-path file names (--module)
	moduleRoot string

	// Output file (-o), stdout if empty
	outputFile string

	verbose bool
}

// reportCommand implements the 'covprobe report' command.
//
// Example:
//
//	covprobe report cov.json
//	covprobe report --markdown --skip-covered a.json b.json
//	covprobe report --fail-under 90 --missing-width 40 cov.json
func reportCommand(args []string, stdout, stderr io.Writer) int {
	config, err := parseReportArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log := newLogger(stderr, config.verbose)

	cov, err := loadCoverage(config.inputs, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if config.moduleRoot != "" {
		simp, err := report.NewModuleSimplifier(config.moduleRoot)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cov = report.Rename(cov, simp)
	}

	err = withOutput(config.outputFile, stdout, func(w io.Writer) error {
		switch config.format {
		case formatJSON:
			return report.WriteJSON(w, cov)
		case formatMarkdown:
			return report.WriteMarkdown(w, cov, config.text)
		case formatHTML:
			return report.WriteHTML(w, cov, config.text)
		default:
			return report.WriteText(w, cov, config.text)
		}
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return 1
	}

	if config.failUnder > 0 && cov.Summary.PercentCovered < config.failUnder {
		log.Warn().
			Float64("covered", cov.Summary.PercentCovered).
			Float64("required", config.failUnder).
			Msg("coverage below threshold")
		return exitUnderThreshold
	}
	return 0
}

// parseReportArgs parses command-line arguments for 'covprobe report'.
func parseReportArgs(args []string) (*reportConfig, error) {
	config := &reportConfig{}
	formats := 0

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--json":
			config.format = formatJSON
			formats++
			continue
		case "--markdown":
			config.format = formatMarkdown
			formats++
			continue
		case "--html":
			config.format = formatHTML
			formats++
			continue
		case "--skip-covered":
			config.text.SkipCovered = true
			continue
		case "-v":
			config.verbose = true
			continue
		}

		if v, ok, err := flagValue(args, &i, "--missing-width"); ok {
			if err != nil {
				return nil, err
			}
			n, err := parseIntFlag("--missing-width", v)
			if err != nil {
				return nil, err
			}
			config.text.MissingWidth = n
			continue
		}
		if v, ok, err := flagValue(args, &i, "--fail-under"); ok {
			if err != nil {
				return nil, err
			}
			f, err := parseFloatFlag("--fail-under", v)
			if err != nil {
				return nil, err
			}
			config.failUnder = f
			continue
		}
		if v, ok, err := flagValue(args, &i, "--module"); ok {
			if err != nil {
				return nil, err
			}
			config.moduleRoot = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "-o", "--out"); ok {
			if err != nil {
				return nil, err
			}
			config.outputFile = v
			continue
		}

		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		config.inputs = append(config.inputs, arg)
	}

	if formats > 1 {
		return nil, errors.New("--json, --markdown and --html are mutually exclusive")
	}
	if len(config.inputs) == 0 {
		return nil, errors.New("no coverage files specified")
	}
	return config, nil
}
