// import.go implements the 'covprobe import' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/covprobe/covprobe"
	"github.com/kolkov/covprobe/internal/cover/report"
)

// importConfig holds configuration for the import command.
type importConfig struct {
	// Go cover profile to convert
	profile string

	// Module root for import-path file names (--module)
	moduleRoot string

	outputFile string
	verbose    bool
}

// importCommand implements the 'covprobe import' command.
//
// Example:
//
//	go test -coverprofile=cover.out ./...
//	covprobe import -o cov.json cover.out
func importCommand(args []string, stdout, stderr io.Writer) int {
	config, err := parseImportArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	log := newLogger(stderr, config.verbose)

	cov, err := report.ReadGoProfiles(config.profile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cov.Meta.Version = covprobe.Version

	if config.moduleRoot != "" {
		simp, err := report.NewModuleSimplifier(config.moduleRoot)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cov = report.Rename(cov, simp)
	}

	if err := withOutput(config.outputFile, stdout, func(w io.Writer) error {
		return report.WriteJSON(w, cov)
	}); err != nil {
		fmt.Fprintf(stderr, "Error writing coverage: %v\n", err)
		return 1
	}

	log.Debug().Str("profile", config.profile).Int("files", len(cov.Files)).Msg("imported cover profile")
	return 0
}

// parseImportArgs parses command-line arguments for 'covprobe import'.
func parseImportArgs(args []string) (*importConfig, error) {
	config := &importConfig{}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "-v" {
			config.verbose = true
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
		if config.profile != "" {
			return nil, errors.New("import takes a single cover profile")
		}
		config.profile = arg
	}

	if config.profile == "" {
		return nil, errors.New("no cover profile specified")
	}
	return config, nil
}
