package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/andresuchdata/autopo-suggest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []domain.PurchaseSuggestion {
	return []domain.PurchaseSuggestion{
		{
			ProductID:         "0000000001",
			ProductCode:       "SKU-1",
			ProductName:       "Arroz Premium Grano Largo 5kg",
			CurrentStock:      20,
			MinStock:          30,
			ExpectedDemand:    70,
			SuggestedPurchase: 2,
			Packaging:         "CASE",
			PackFactor:        50,
			TotalUnits:        100,
			BestSupplier:      "ACME",
			BestCost:          125,
			EstTotalCost:      250,
			Quoted:            true,
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"SKU-1", "Arroz Premium Grano Largo 5kg", "20", "30", "70", "2", "CASE", "ACME", "125", "250"}, records[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleRows()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "SKU-1", rows[1][0])
	assert.Equal(t, "CASE", rows[1][6])

	width, err := f.GetColWidth(sheet, "B")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("Arroz Premium Grano Largo 5kg")+2), width, 1e-9)

	width, err = f.GetColWidth(sheet, "J")
	require.NoError(t, err)
	assert.InDelta(t, float64(len("est_total_cost")+2), width, 1e-9)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "purchase_suggestions_abc.csv", FileName("abc", FormatCSV))
	assert.Equal(t, "text/csv", FormatCSV.ContentType())
}
