package postings

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// Reader provides sequential reads over a postings file with unit-addressed
// seeking. A Reader is not safe for concurrent use; callers that share one
// across goroutines must serialise access.
type Reader struct {
	f    *os.File
	br   *bufio.Reader
	size int64
}

// Open opens a postings file and validates that its size is a whole number
// of 4-byte units.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening postings file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stating postings file: %w", err)
	}
	if info.Size()%IntSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: postings file size %d is not a multiple of %d",
			apperrors.ErrCorruptIndex, info.Size(), IntSize)
	}
	return &Reader{
		f:    f,
		br:   bufio.NewReaderSize(f, 1<<16),
		size: info.Size(),
	}, nil
}

// Seek positions the reader at the given unit offset.
func (r *Reader) Seek(unit int64) error {
	if _, err := r.f.Seek(unit*IntSize, io.SeekStart); err != nil {
		return fmt.Errorf("seeking postings to unit %d: %w", unit, err)
	}
	r.br.Reset(r.f)
	return nil
}

// ReadInt reads the next value. Hitting end-of-file mid-read means the store
// does not match its lexicon and is reported as corruption.
func (r *Reader) ReadInt() (int, error) {
	var buf [IntSize]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("%w: unexpected end of postings file", apperrors.ErrCorruptIndex)
		}
		return 0, fmt.Errorf("reading postings value: %w", err)
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}

// Skip advances past n values without decoding them.
func (r *Reader) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := r.br.Discard(n * IntSize); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: unexpected end of postings file", apperrors.ErrCorruptIndex)
		}
		return fmt.Errorf("skipping %d postings values: %w", n, err)
	}
	return nil
}

// Units returns the number of 4-byte values in the file.
func (r *Reader) Units() int64 {
	return r.size / IntSize
}

// SizeBytes returns the file size in bytes.
func (r *Reader) SizeBytes() int64 {
	return r.size
}

func (r *Reader) Close() error {
	return r.f.Close()
}
