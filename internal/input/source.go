package input

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const readBufferSize = 64 * 1024

// DecodeError reports an invalid compressed stream. It is always fatal:
// a broken archive is a setup problem, not a data-quality problem.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid compressed stream: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// LineSource yields successive text lines from a byte stream,
// transparently gzip-decompressing when the stream's leading magic
// bytes identify it as compressed. Detection is by content, never by
// filename extension. The source does not own the underlying reader;
// the caller keeps the file handle open for the lifetime of the
// iteration.
type LineSource struct {
	r    *bufio.Reader
	gzip bool
	line int
}

// NewLineSource wraps r. A gzip stream is detected by its two magic
// bytes; concatenated gzip members decode as one continuous stream,
// which is how AWS ships rotated ALB logs.
func NewLineSource(r io.Reader) (*LineSource, error) {
	br := bufio.NewReaderSize(r, readBufferSize)

	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, &DecodeError{Err: err}
		}
		return &LineSource{r: bufio.NewReaderSize(zr, readBufferSize), gzip: true}, nil
	}
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return &LineSource{r: br}, nil
}

// Compressed reports whether the stream was detected as gzip.
func (s *LineSource) Compressed() bool { return s.gzip }

// Next returns the next line with its 1-based line number. The line
// terminator is stripped and invalid UTF-8 sequences are replaced with
// U+FFFD rather than failing the file. At end of input Next returns
// io.EOF; a decompression failure mid-stream returns a DecodeError.
func (s *LineSource) Next() (string, int, error) {
	line, err := s.r.ReadString('\n')
	if err != nil && err != io.EOF {
		if s.gzip {
			return "", 0, &DecodeError{Err: err}
		}
		return "", 0, fmt.Errorf("read input: %w", err)
	}
	if line == "" && err == io.EOF {
		return "", 0, io.EOF
	}

	s.line++

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	line = strings.ToValidUTF8(line, "�")

	return line, s.line, nil
}
