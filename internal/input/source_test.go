package input

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func readAll(t *testing.T, src *LineSource) []string {
	t.Helper()
	var lines []string
	for {
		line, _, err := src.Next()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		lines = append(lines, line)
	}
}

func TestLineSource_Plain(t *testing.T) {
	src, err := NewLineSource(strings.NewReader("one\ntwo\nthree\n"))
	require.NoError(t, err)
	assert.False(t, src.Compressed())
	assert.Equal(t, []string{"one", "two", "three"}, readAll(t, src))
}

func TestLineSource_Gzip(t *testing.T) {
	src, err := NewLineSource(bytes.NewReader(gzipped(t, "one\ntwo\n")))
	require.NoError(t, err)
	assert.True(t, src.Compressed())
	assert.Equal(t, []string{"one", "two"}, readAll(t, src))
}

func TestLineSource_GzipAndPlainMatch(t *testing.T) {
	content := "alpha beta\ngamma \"delta epsilon\"\n"

	plain, err := NewLineSource(strings.NewReader(content))
	require.NoError(t, err)
	compressed, err := NewLineSource(bytes.NewReader(gzipped(t, content)))
	require.NoError(t, err)

	assert.Equal(t, readAll(t, plain), readAll(t, compressed))
}

func TestLineSource_ConcatenatedGzipMembers(t *testing.T) {
	// Rotated logs are sometimes shipped as concatenated members.
	data := append(gzipped(t, "one\n"), gzipped(t, "two\n")...)
	src, err := NewLineSource(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, readAll(t, src))
}

func TestLineSource_LineNumbers(t *testing.T) {
	src, err := NewLineSource(strings.NewReader("a\nb\nc"))
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		_, lineno, err := src.Next()
		require.NoError(t, err)
		assert.Equal(t, want, lineno)
	}
	_, _, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestLineSource_NoTrailingNewline(t *testing.T) {
	src, err := NewLineSource(strings.NewReader("a\nlast"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "last"}, readAll(t, src))
}

func TestLineSource_CRLF(t *testing.T) {
	src, err := NewLineSource(strings.NewReader("a\r\nb\r\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, readAll(t, src))
}

func TestLineSource_Empty(t *testing.T) {
	src, err := NewLineSource(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, readAll(t, src))
}

func TestLineSource_InvalidUTF8Replaced(t *testing.T) {
	src, err := NewLineSource(bytes.NewReader([]byte{'a', 0xff, 'b', '\n'}))
	require.NoError(t, err)

	line, _, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "a�b", line)
}

func TestLineSource_CorruptGzip(t *testing.T) {
	// Valid magic bytes followed by garbage.
	data := []byte{0x1f, 0x8b, 0x00, 0x01, 0x02, 0x03}
	_, err := NewLineSource(bytes.NewReader(data))
	require.Error(t, err)

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestLineSource_TruncatedGzip(t *testing.T) {
	full := gzipped(t, "one\ntwo\nthree\n")
	src, err := NewLineSource(bytes.NewReader(full[:len(full)-6]))
	require.NoError(t, err)

	var decodeErr *DecodeError
	for {
		_, _, err := src.Next()
		if err == io.EOF {
			t.Fatal("expected a decode error before EOF")
		}
		if err != nil {
			assert.ErrorAs(t, err, &decodeErr)
			return
		}
	}
}
