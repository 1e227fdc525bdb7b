package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Notice Archive",
		Columns: []Column{{Header: "Title", Width: 3}, {Header: "Department"}},
		Rows: [][]string{
			{"Mid-term exam schedule", "CSE"},
			{"Workshop, \"robots\"", "ME"},
		},
	}
}

func TestCSVExporterWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter().Write(&buf, sampleDataset()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Title", "Department"}, records[0])
	assert.Equal(t, "Workshop, \"robots\"", records[2][0])
}

func TestPDFExporterWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPDFExporter().Write(&buf, sampleDataset()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestDatasetValidate(t *testing.T) {
	assert.Error(t, Dataset{}.Validate())

	bad := sampleDataset()
	bad.Rows = append(bad.Rows, []string{"only one"})
	assert.Error(t, bad.Validate())
}

func TestColumnWidthsFollowWeights(t *testing.T) {
	widths := columnWidths([]Column{{Width: 3}, {Width: 1}})
	assert.InDelta(t, pdfPageWidth*0.75, widths[0], 0.001)
	assert.InDelta(t, pdfPageWidth*0.25, widths[1], 0.001)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
