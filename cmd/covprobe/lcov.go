// lcov.go implements the 'covprobe lcov' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/covprobe/internal/cover/report"
)

// lcovConfig holds configuration for the lcov command.
type lcovConfig struct {
	inputs     []string
	outputFile string
	opts       report.LCOVOptions

	// branchesSet records an explicit --branches/--no-branches.
	branchesSet bool

	verbose bool
}

// lcovCommand implements the 'covprobe lcov' command.
//
// Branch records are emitted when the document has branch coverage,
// unless --no-branches is given.
//
// Example:
//
//	covprobe lcov -o cov.info --test-name unit cov.json
func lcovCommand(args []string, stdout, stderr io.Writer) int {
	config, err := parseLCOVArgs(args)
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

	opts := config.opts
	if !config.branchesSet {
		opts.WithBranches = cov.Meta.BranchCoverage
	}
	if err := withOutput(config.outputFile, stdout, func(w io.Writer) error {
		return report.WriteLCOV(w, cov, opts)
	}); err != nil {
		fmt.Fprintf(stderr, "Error writing lcov: %v\n", err)
		return 1
	}
	return 0
}

// parseLCOVArgs parses command-line arguments for 'covprobe lcov'.
func parseLCOVArgs(args []string) (*lcovConfig, error) {
	config := &lcovConfig{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--branches":
			config.opts.WithBranches, config.branchesSet = true, true
			continue
		case "--no-branches":
			config.opts.WithBranches, config.branchesSet = false, true
			continue
		case "-v":
			config.verbose = true
			continue
		}

		if v, ok, err := flagValue(args, &i, "--test-name"); ok {
			if err != nil {
				return nil, err
			}
			config.opts.TestName = v
			continue
		}
		if v, ok, err := flagValue(args, &i, "--comment"); ok {
			if err != nil {
				return nil, err
			}
			config.opts.Comments = append(config.opts.Comments, v)
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

	if len(config.inputs) == 0 {
		return nil, errors.New("no coverage files specified")
	}
	return config, nil
}
