package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kolkov/covprobe/internal/cover/report"
)

// newLogger returns a console logger on w. Verbose runs log at debug level;
// otherwise only warnings and errors are shown.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}).
		Level(level).
		With().Timestamp().Logger()
}

// flagValue handles "-name value" and "-name=value". It reports whether
// args[*i] was the flag, advancing *i past a separate value.
func flagValue(args []string, i *int, names ...string) (string, bool, error) {
	arg := args[*i]
	for _, name := range names {
		if arg == name {
			if *i+1 >= len(args) {
				return "", true, fmt.Errorf("%s flag requires an argument", name)
			}
			*i++
			return args[*i], true, nil
		}
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"="), true, nil
		}
	}
	return "", false, nil
}

func parseIntFlag(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, value)
	}
	return n, nil
}

func parseFloatFlag(name, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, value)
	}
	return f, nil
}

// loadCoverage reads every document in paths and merges them in order.
func loadCoverage(paths []string, log zerolog.Logger) (*report.Coverage, error) {
	var merged *report.Coverage
	for _, path := range paths {
		c, err := readCoverageFile(path)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("file", path).Int("files", len(c.Files)).Msg("loaded coverage")

		if merged == nil {
			merged = c
			continue
		}
		if err := report.Merge(merged, c); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return merged, nil
}

func readCoverageFile(path string) (*report.Coverage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := report.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// withOutput runs write against the file named by path, or stdout when
// path is empty.
func withOutput(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
