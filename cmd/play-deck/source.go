package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/asheshgoplani/play-deck/internal/examples"
)

// stdinPath names standard input as the source file.
const stdinPath = "-"

var errNoSource = errors.New("nothing to run: pass a file, - for standard input, or --example")

// program is a loaded source text.
type program struct {
	Source string
	Title  string
}

// loadProgram reads path, or renders the named example sized to cols x rows.
// Both empty returns an empty program.
func loadProgram(path, example string, cols, rows int, stdin io.Reader) (program, error) {
	switch {
	case path != "" && example != "":
		return program{}, errors.New("pass either a file or --example, not both")

	case example != "":
		ex, err := examples.Lookup(example)
		if err != nil {
			return program{}, err
		}
		src, err := ex.Source(cols, rows)
		if err != nil {
			return program{}, err
		}
		return program{Source: src, Title: ex.Title}, nil

	case path == stdinPath:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return program{}, fmt.Errorf("reading standard input: %w", err)
		}
		return program{Source: string(data), Title: "stdin"}, nil

	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return program{}, err
		}
		return program{Source: string(data), Title: filepath.Base(path)}, nil
	}
	return program{}, nil
}

// firstArg returns args[0], or "" when there is none.
func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
