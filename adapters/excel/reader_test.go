package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	apperrors "gobiodiv/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `site,treatment,oak,ash,elm
p1,burned,10,0,0
p2,burned,0,5,5
p3,control,0,,10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadCommunityCSV(t *testing.T) {
	path := writeFile(t, "meadow.csv", sampleCSV)

	ds, err := NewDataReader(path, DefaultReaderConfig()).ReadCommunity(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "meadow", ds.Name)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ds.Matrix.SiteIDs())
	assert.Equal(t, []string{"oak", "ash", "elm"}, ds.Matrix.SpeciesNames())
	assert.Equal(t, []float64{0, 0, 10}, ds.Matrix.Row(2), "empty cells are zero")
	assert.Equal(t, []string{"treatment"}, ds.AttributeNames())

	g, err := ds.Grouping("treatment", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"burned", "control"}, g.Levels())
}

func TestNumericGroupColumnAsAttribute(t *testing.T) {
	path := writeFile(t, "plots.csv", "plot,block,a,b\nx,1,3,4\ny,2,5,0\n")

	ds, err := NewDataReader(path, ReaderConfig{AttributeColumns: []string{"block"}}).ReadCommunity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Matrix.SpeciesNames())
	assert.Equal(t, []string{"1", "2"}, ds.Attributes["block"])
}

func TestReadCommunityRejectsNegative(t *testing.T) {
	path := writeFile(t, "bad.csv", "site,a,b\ns1,1,-3\n")

	_, err := NewDataReader(path, DefaultReaderConfig()).ReadCommunity(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestReadCommunityMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "none.csv"), DefaultReaderConfig()).ReadCommunity(context.Background())
	assert.Equal(t, apperrors.CodeUnreadableInput, apperrors.GetCode(err))
}

func TestReadCommunityJSON(t *testing.T) {
	path := writeFile(t, "survey.json", `{"survey": {"sites": [
		{"site": "s1", "habitat": "wet", "moss": 4, "fern": 1},
		{"site": "s2", "habitat": "dry", "moss": 0, "fern": 6, "lichen": 2}
	]}}`)

	ds, err := NewDataReader(path, ReaderConfig{DataPath: "survey.sites"}).ReadCommunity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"moss", "fern", "lichen"}, ds.Matrix.SpeciesNames())
	assert.Equal(t, []float64{4, 1, 0}, ds.Matrix.Row(0))
	assert.Equal(t, []string{"wet", "dry"}, ds.Attributes["habitat"])
}

func TestParseJSONRecordsErrors(t *testing.T) {
	_, err := ParseJSONRecords([]byte(`{"a": 1}`), "rows")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = ParseJSONRecords([]byte(`[1, 2]`), "")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))

	_, err = ParseJSONRecords([]byte(`not json`), "")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestReadCommunityXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"site", "zone", "sp1", "sp2"},
		{"a", "north", 3, 1},
		{"b", "south", 0, 7},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "zones.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ds, err := NewDataReader(path, DefaultReaderConfig()).ReadCommunity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.Matrix.SiteIDs())
	assert.Equal(t, []float64{0, 7}, ds.Matrix.Row(1))
	assert.Equal(t, []string{"north", "south"}, ds.Attributes["zone"])
}

func TestDetectSiteColumn(t *testing.T) {
	data := &TableData{
		Headers: []string{"n", "Plot", "x"},
		Rows:    []RawRowData{{"n": "1", "Plot": "a", "x": "2"}, {"n": "2", "Plot": "b", "x": "3"}},
	}
	assert.Equal(t, "Plot", DetectSiteColumn(data))

	numeric := &TableData{
		Headers: []string{"a", "b"},
		Rows:    []RawRowData{{"a": "1", "b": "2"}},
	}
	assert.Equal(t, "", DetectSiteColumn(numeric))
}

func TestDuplicateHeadersRejected(t *testing.T) {
	path := writeFile(t, "dup.csv", "site,oak,oak\ns1,1,2\n")

	_, err := NewDataReader(path, DefaultReaderConfig()).ReadCommunity(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), `"oak"`)
}

func TestNoSiteColumnGeneratesIDs(t *testing.T) {
	data, err := processRows([][]string{
		{"", "a", "b"},
		{"q", "1", "2"},
		{"q", "3", "4"},
	})
	require.NoError(t, err)
	require.Equal(t, "", DetectSiteColumn(data))

	ds, err := BuildDataset("unlabelled", data, ReaderConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"site_1", "site_2"}, ds.Matrix.SiteIDs())
	assert.Equal(t, []string{"a", "b"}, ds.Matrix.SpeciesNames())
}
