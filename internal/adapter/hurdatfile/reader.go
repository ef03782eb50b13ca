// Package hurdatfile reads HURDAT dataset lines from a file or stream.
package hurdatfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/hurdat-etl/internal/domain"
)

// Reader implements pipeline.LineExtractor over any io.Reader.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	lineNum int
	done    bool
}

// NewReader wraps r. Lines longer than 64 KiB are rejected by ExtractLines.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Open opens a dataset file for reading. The caller must Close it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// ExtractLines returns up to n lines with trailing carriage returns removed,
// or io.EOF once the input is exhausted.
func (r *Reader) ExtractLines(ctx context.Context, n int) ([]domain.RawLine, error) {
	if r.done {
		return nil, io.EOF
	}
	lines := make([]domain.RawLine, 0, n)
	for len(lines) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.scanner.Scan() {
			r.done = true
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("read line %d: %w", r.lineNum+1, err)
			}
			break
		}
		r.lineNum++
		lines = append(lines, domain.RawLine{
			Num:  r.lineNum,
			Text: strings.TrimRight(r.scanner.Text(), "\r"),
		})
	}
	if len(lines) == 0 {
		return nil, io.EOF
	}
	return lines, nil
}

// Close closes the underlying file, if Open created one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
