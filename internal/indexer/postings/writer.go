// Package postings implements the on-disk postings store: a flat sequence of
// 4-byte big-endian unsigned integers. Offsets into the store count 4-byte
// units, not bytes, so the byte position of unit n is n*IntSize.
package postings

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// IntSize is the width of every value in the store.
const IntSize = 4

// Writer appends unsigned 32-bit values to a new postings file. It writes to
// a .tmp file and renames on Close, so a crashed build never leaves a partial
// store behind.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	path  string
	tmp   string
	units int64
}

// Create opens a new postings file for writing at path.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating postings directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating temp postings file: %w", err)
	}
	return &Writer{
		f:    f,
		bw:   bufio.NewWriterSize(f, 1<<20),
		path: path,
		tmp:  tmp,
	}, nil
}

// WriteInt appends one value. Values outside [0, 2^32-1] cannot be encoded
// and return ErrValueOverflow.
func (w *Writer) WriteInt(v int) error {
	if v < 0 || v > math.MaxUint32 {
		return fmt.Errorf("%w: %d", apperrors.ErrValueOverflow, v)
	}
	var buf [IntSize]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	if _, err := w.bw.Write(buf[:]); err != nil {
		return fmt.Errorf("writing postings value: %w", err)
	}
	w.units++
	return nil
}

// Offset returns the unit offset the next WriteInt will land at. Builders
// snapshot it before writing a term's block.
func (w *Writer) Offset() int64 {
	return w.units
}

// Close flushes, syncs, and atomically renames the temp file into place.
func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return fmt.Errorf("flushing postings file: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("syncing postings file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing postings file: %w", err)
	}
	if err := os.Rename(w.tmp, w.path); err != nil {
		return fmt.Errorf("renaming postings file: %w", err)
	}
	return nil
}

// Discard abandons the build and removes the temp file.
func (w *Writer) Discard() error {
	w.f.Close()
	return os.Remove(w.tmp)
}
