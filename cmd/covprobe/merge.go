// merge.go implements the 'covprobe merge' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/covprobe/internal/cover/report"
)

// mergeConfig holds configuration for the merge command.
type mergeConfig struct {
	inputs     []string
	outputFile string
	verbose    bool
}

// mergeCommand implements the 'covprobe merge' command.
//
// Lines and branches executed in any input are executed in the output.
//
// Example:
//
//	covprobe merge -o all.json cov-1.json cov-2.json
func mergeCommand(args []string, stdout, stderr io.Writer) int {
	config, err := parseMergeArgs(args)
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

	if err := withOutput(config.outputFile, stdout, func(w io.Writer) error {
		return report.WriteJSON(w, cov)
	}); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", config.outputFile, err)
		return 1
	}

	log.Debug().Int("inputs", len(config.inputs)).Int("files", len(cov.Files)).Msg("merged coverage")
	return 0
}

// parseMergeArgs parses command-line arguments for 'covprobe merge'.
func parseMergeArgs(args []string) (*mergeConfig, error) {
	config := &mergeConfig{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "-v" {
			config.verbose = true
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

	if len(config.inputs) < 2 {
		return nil, errors.New("merge needs at least two coverage files")
	}
	return config, nil
}
