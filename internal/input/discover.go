// Package input discovers the concrete inputs for a run and turns each
// one into a stream of text lines, transparently gzip-decompressing.
package input

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Input describes one concrete input: a regular file, or stdin.
type Input struct {
	Path  string
	Stdin bool
}

// Name returns the identifier used in diagnostics and errors.
func (in Input) Name() string {
	if in.Stdin {
		return "-"
	}
	return in.Path
}

// Open opens the input for reading. Stdin is wrapped so that closing
// the returned reader does not close the process's stdin.
func (in Input) Open() (io.ReadCloser, error) {
	if in.Stdin {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

// Discover resolves a path argument to an ordered list of inputs:
//
//   - "-" is standard input
//   - a regular file is itself
//   - a directory is walked recursively in lexical order; only regular
//     files are yielded, symlinks are not followed, hidden files are
//     included
//
// The returned order is deterministic and defines the output order of
// the whole run. Discover stats paths but never reads file contents.
// Errors wrap fs.ErrNotExist and fs.ErrPermission.
func Discover(path string) ([]Input, error) {
	if path == "-" {
		return []Input{{Stdin: true}}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}

	if !info.IsDir() {
		return []Input{{Path: path}}, nil
	}

	var inputs []Input
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			inputs = append(inputs, Input{Path: p})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	return inputs, nil
}
