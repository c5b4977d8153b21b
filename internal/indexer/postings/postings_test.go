package postings

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// TestWriteReadRoundTrip verifies values survive a write/read cycle and that
// unit offsets address the right positions.
func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	values := []int{0, 1, 42, 65535, math.MaxUint32}
	for i, v := range values {
		if got := w.Offset(); got != int64(i) {
			t.Errorf("Offset before value %d = %d, want %d", i, got, i)
		}
		if err := w.WriteInt(v); err != nil {
			t.Fatalf("WriteInt(%d): %v", v, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if got := r.Units(); got != int64(len(values)) {
		t.Errorf("Units = %d, want %d", got, len(values))
	}
	if got := r.SizeBytes(); got != int64(len(values)*IntSize) {
		t.Errorf("SizeBytes = %d, want %d", got, len(values)*IntSize)
	}
	for i, want := range values {
		got, err := r.ReadInt()
		if err != nil {
			t.Fatalf("ReadInt %d: %v", i, err)
		}
		if got != want {
			t.Errorf("value %d = %d, want %d", i, got, want)
		}
	}
}

// TestSeekAndSkip verifies unit-addressed seeking and value skipping.
func TestSeekAndSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for v := 100; v < 110; v++ {
		if err := w.WriteInt(v); err != nil {
			t.Fatalf("WriteInt(%d): %v", v, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if err := r.Seek(7); err != nil {
		t.Fatalf("Seek(7): %v", err)
	}
	if got, _ := r.ReadInt(); got != 107 {
		t.Errorf("after Seek(7), ReadInt = %d, want 107", got)
	}

	if err := r.Seek(0); err != nil {
		t.Fatalf("Seek(0): %v", err)
	}
	if err := r.Skip(4); err != nil {
		t.Fatalf("Skip(4): %v", err)
	}
	if got, _ := r.ReadInt(); got != 104 {
		t.Errorf("after Skip(4), ReadInt = %d, want 104", got)
	}

	// Seeking backwards must work too: resolvers revisit earlier blocks.
	if err := r.Seek(2); err != nil {
		t.Fatalf("Seek(2): %v", err)
	}
	if got, _ := r.ReadInt(); got != 102 {
		t.Errorf("after Seek(2), ReadInt = %d, want 102", got)
	}
}

// TestWriteIntRange verifies out-of-range values are rejected before hitting
// the file.
func TestWriteIntRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Discard()

	for _, v := range []int{-1, math.MaxUint32 + 1} {
		err := w.WriteInt(v)
		if !errors.Is(err, apperrors.ErrValueOverflow) {
			t.Errorf("WriteInt(%d) = %v, want ErrValueOverflow", v, err)
		}
	}
	if got := w.Offset(); got != 0 {
		t.Errorf("Offset after rejected writes = %d, want 0", got)
	}
}

// TestOpenRejectsTornFile verifies a file whose size is not unit-aligned is
// reported as corrupt.
func TestOpenRejectsTornFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.bin")
	if err := os.WriteFile(path, []byte{0, 0, 1}, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("Open = %v, want ErrCorruptIndex", err)
	}
}

// TestReadPastEndIsCorruption verifies reading beyond the file reports
// corruption rather than a bare EOF.
func TestReadPastEndIsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inverted.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.WriteInt(5); err != nil {
		t.Fatalf("WriteInt: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if _, err := r.ReadInt(); err != nil {
		t.Fatalf("first ReadInt: %v", err)
	}
	if _, err := r.ReadInt(); !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("ReadInt past end = %v, want ErrCorruptIndex", err)
	}
}

// TestDiscardLeavesNoFile verifies an abandoned build cleans up its temp file
// and never creates the final path.
func TestDiscardLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inverted.bin")

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.WriteInt(1); err != nil {
		t.Fatalf("WriteInt: %v", err)
	}
	if err := w.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("final path exists after Discard")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp path exists after Discard")
	}
}
