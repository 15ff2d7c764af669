package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"pricehistory-extractor/internal/types"
)

// ErrNothingToFlush is returned by Flush when no header was captured
var ErrNothingToFlush = errors.New("no header captured, nothing to write")

// RecordStore accumulates one target's records and writes them as CSV.
// A store belongs to a single target; create a new one per target.
type RecordStore struct {
	outputDir string
	header    types.Header
	records   []types.Record
}

// New creates an empty record store writing into outputDir
func New(outputDir string) *RecordStore {
	return &RecordStore{outputDir: outputDir}
}

// FileName returns the artifact name for target
func FileName(target types.Target) string {
	return string(target) + "_price_history.csv"
}

// Path returns where the artifact for target is written
func (s *RecordStore) Path(target types.Target) string {
	return filepath.Join(s.outputDir, FileName(target))
}

// SetHeader fixes the column names. Setting the same header again is a no-op.
func (s *RecordStore) SetHeader(header types.Header) error {
	if len(header) == 0 {
		return types.ErrNoHeader
	}
	if s.header != nil {
		if slices.Equal(s.header, header) {
			return nil
		}
		return fmt.Errorf("%w: have %v, got %v", types.ErrHeaderChanged, s.header, header)
	}
	s.header = slices.Clone(header)
	return nil
}

// HasHeader reports whether the header was captured
func (s *RecordStore) HasHeader() bool {
	return s.header != nil
}

// Append adds records after checking each against the header. Either all
// records are added or none is.
func (s *RecordStore) Append(records ...types.Record) error {
	if s.header == nil {
		return types.ErrNoHeader
	}
	for i, record := range records {
		if len(record) != len(s.header) {
			return fmt.Errorf("%w: row %d has %d cells, header has %d", types.ErrShapeMismatch, i+1, len(record), len(s.header))
		}
	}
	for _, record := range records {
		s.records = append(s.records, slices.Clone(record))
	}
	return nil
}

// Len returns the number of accumulated records
func (s *RecordStore) Len() int {
	return len(s.records)
}

// Flush writes the header and all records to the target's artifact,
// replacing any file from an earlier run. The write goes through a
// temporary file so an interrupted flush never leaves a truncated CSV.
func (s *RecordStore) Flush(target types.Target) (string, error) {
	if s.header == nil {
		return "", ErrNothingToFlush
	}

	data, err := s.encode()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := s.Path(target)
	tmp, err := os.CreateTemp(s.outputDir, "."+FileName(target)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return path, nil
}

func (s *RecordStore) encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(s.header); err != nil {
		return nil, fmt.Errorf("failed to encode header: %w", err)
	}
	for _, record := range s.records {
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to encode record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return buf.Bytes(), nil
}
