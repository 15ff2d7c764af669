package extractor

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"pricehistory-extractor/internal/testutil"
	"pricehistory-extractor/internal/types"
)

var testHeader = []string{"Date", "Ltp"}

// threePages returns a three page history, one row per page
func threePages() []string {
	return []string{
		testutil.PriceTable(testHeader, [][]string{{"2024-01-03", "1,030.00"}}, 1),
		testutil.PriceTable(testHeader, [][]string{{"2024-01-02", "1,020.00"}}, 2),
		testutil.PriceTable(testHeader, [][]string{{"2024-01-01", "1,010.00"}}, 3),
	}
}

func newTestExtractor(t *testing.T) (*PriceHistoryExtractor, *types.Config) {
	t.Helper()
	config := testutil.FastConfig(t.TempDir())
	return NewPriceHistoryExtractor(config, testutil.QuietLogger()), config
}

func readArtifact(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
