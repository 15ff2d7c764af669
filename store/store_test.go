package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricehistory-extractor/internal/types"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestFlush_WritesHeaderAndRecords(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))
	require.NoError(t, s.Append(types.Record{"2024-01-01", "1,000.00"}, types.Record{"2024-01-02", "1,010.50"}))

	path, err := s.Flush("NABIL")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "NABIL_price_history.csv"), path)
	assert.Equal(t, [][]string{
		{"Date", "Ltp"},
		{"2024-01-01", "1,000.00"},
		{"2024-01-02", "1,010.50"},
	}, readCSV(t, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"1,000.00"`)
}

func TestFlush_Idempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))
	require.NoError(t, s.Append(types.Record{"2024-01-01", "100"}))

	path, err := s.Flush("A")
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Flush("A")
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFlush_OverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	old := New(dir)
	require.NoError(t, old.SetHeader(types.Header{"Date", "Ltp"}))
	require.NoError(t, old.Append(types.Record{"2023-12-31", "99"}, types.Record{"2024-01-01", "100"}))
	_, err := old.Flush("A")
	require.NoError(t, err)

	s := New(dir)
	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))
	require.NoError(t, s.Append(types.Record{"2024-01-02", "101"}))
	path, err := s.Flush("A")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"Date", "Ltp"}, {"2024-01-02", "101"}}, readCSV(t, path))
}

func TestFlush_WithoutHeader(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	_, err := s.Flush("B")

	assert.ErrorIs(t, err, ErrNothingToFlush)
	assert.NoFileExists(t, filepath.Join(dir, "B_price_history.csv"))
}

func TestSetHeader_CapturedOnce(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))
	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))

	err := s.SetHeader(types.Header{"Date", "Close"})
	assert.ErrorIs(t, err, types.ErrHeaderChanged)
	assert.Equal(t, types.Header{"Date", "Ltp"}, s.header)
}

func TestAppend_RejectsShapeMismatchAtomically(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))

	err := s.Append(types.Record{"2024-01-01", "100"}, types.Record{"2024-01-02"})

	assert.ErrorIs(t, err, types.ErrShapeMismatch)
	assert.Equal(t, 0, s.Len())
}

func TestAppend_RequiresHeader(t *testing.T) {
	s := New(t.TempDir())

	err := s.Append(types.Record{"2024-01-01", "100"})

	assert.ErrorIs(t, err, types.ErrNoHeader)
}

func TestAppend_CopiesRecords(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.SetHeader(types.Header{"Date", "Ltp"}))
	record := types.Record{"2024-01-01", "100"}

	require.NoError(t, s.Append(record))
	record[1] = "changed"

	assert.Equal(t, types.Record{"2024-01-01", "100"}, s.records[0])
}
