package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/phraselab/phrase-search-platform/pkg/errors"
)

// FileInfo describes a source or artifact file referenced from index
// metadata.
type FileInfo struct {
	FilePath  string `json:"file_path"`
	FileSizeB int64  `json:"file_size_b"`
}

// StatFile captures the absolute path and size of a file.
func StatFile(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("stating %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return FileInfo{FilePath: abs, FileSizeB: info.Size()}, nil
}

// Metadata is the JSON header line of a record file: build statistics the
// lexicon carries forward.
type Metadata struct {
	NumberOfDocs   int      `json:"number_of_docs"`
	CollectionSize int      `json:"collection_size"`
	CollectionFile FileInfo `json:"collection_file"`
	Stemmed        bool     `json:"stemmed"`
}

// ParseMetadata decodes the metadata header line.
func ParseMetadata(line []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(line, &m); err != nil {
		return Metadata{}, fmt.Errorf("%w: metadata line: %v", apperrors.ErrMalformedRecord, err)
	}
	return m, nil
}
