package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gobiodiv/domain/community"
	apperrors "gobiodiv/internal/errors"
	"gobiodiv/ports"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"
)

// DataReader reads a sites x species table from xlsx, csv or json files.
// One row per site; species columns hold abundances.
type DataReader struct {
	filePath string
	fileType string // "xlsx", "csv" or "json"
	config   ReaderConfig
}

var _ ports.CommunityReader = (*DataReader)(nil)

// NewDataReader creates a reader, choosing the format from the extension
func NewDataReader(filePath string, config ReaderConfig) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	switch ext {
	case ".csv":
		fileType = "csv"
	case ".json":
		fileType = "json"
	}
	if config.Sheet == "" {
		config.Sheet = DefaultReaderConfig().Sheet
	}
	return &DataReader{filePath: filePath, fileType: fileType, config: config}
}

// ReadCommunity reads the file and builds the community dataset
func (r *DataReader) ReadCommunity(ctx context.Context) (*community.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(r.filePath), filepath.Ext(r.filePath))
	return BuildDataset(name, data, r.config)
}

// ReadData reads the raw table
func (r *DataReader) ReadData() (*TableData, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, apperrors.UnreadableInput(r.filePath, err)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "json":
		return r.readJSONData()
	default:
		return r.readExcelData()
	}
}

func (r *DataReader) readExcelData() (*TableData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, apperrors.UnreadableInput(r.filePath, err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.config.Sheet)
	if err != nil {
		return nil, apperrors.UnreadableInput(fmt.Sprintf("%s sheet %s", r.filePath, r.config.Sheet), err)
	}
	log.Printf("[DataReader] %s read in %.2fms (%d rows)", r.config.Sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	return processRows(rows)
}

func (r *DataReader) readCSVData() (*TableData, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, apperrors.UnreadableInput(r.filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.UnreadableInput(r.filePath, err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	return processRows(rows)
}

func (r *DataReader) readJSONData() (*TableData, error) {
	body, err := os.ReadFile(r.filePath)
	if err != nil {
		return nil, apperrors.UnreadableInput(r.filePath, err)
	}
	return ParseJSONRecords(body, r.config.DataPath)
}

// ParseJSONRecords extracts a table from a JSON array of flat objects found
// at dataPath ("" or "." for the document root). Column order follows first
// appearance of each key.
func ParseJSONRecords(body []byte, dataPath string) (*TableData, error) {
	if !gjson.ValidBytes(body) {
		return nil, apperrors.InvalidInput("body is not valid JSON")
	}
	result := gjson.ParseBytes(body)
	if dataPath != "" && dataPath != "." {
		result = result.Get(dataPath)
	}
	if !result.Exists() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("data path '%s' not found", dataPath))
	}
	if !result.IsArray() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("data path '%s' is not an array of records", dataPath))
	}

	data := &TableData{}
	seen := make(map[string]bool)
	var parseErr error
	result.ForEach(func(_, record gjson.Result) bool {
		if !record.IsObject() {
			parseErr = apperrors.InvalidInput("every record must be a JSON object")
			return false
		}
		row := make(RawRowData)
		record.ForEach(func(key, value gjson.Result) bool {
			k := strings.TrimSpace(key.String())
			if !seen[k] {
				seen[k] = true
				data.Headers = append(data.Headers, k)
			}
			if value.Type != gjson.Null {
				row[k] = strings.TrimSpace(value.String())
			}
			return true
		})
		data.Rows = append(data.Rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(data.Rows) == 0 {
		return nil, apperrors.InvalidInput("no records found")
	}
	return data, nil
}

// processRows converts raw string rows into TableData
func processRows(rows [][]string) (*TableData, error) {
	if len(rows) < 2 {
		return nil, apperrors.InvalidInput("table must have a header row and at least one data row")
	}

	headers := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
		if headers[i] == "" {
			continue
		}
		if seen[headers[i]] {
			return nil, apperrors.InvalidInput(fmt.Sprintf("duplicate column header %q", headers[i]))
		}
		seen[headers[i]] = true
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		rowData := make(RawRowData, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	log.Printf("[DataReader] table processed (%d columns, %d rows)", len(headers), len(dataRows))
	return &TableData{Headers: headers, Rows: dataRows}, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// BuildDataset splits a table into site IDs, attributes and the abundance
// matrix. Empty species cells count as zero.
func BuildDataset(name string, data *TableData, config ReaderConfig) (*community.Dataset, error) {
	if len(data.Rows) == 0 {
		return nil, apperrors.InvalidInput("table has no data rows")
	}

	siteCol := config.SiteColumn
	if siteCol == "" {
		siteCol = DetectSiteColumn(data)
	} else if !hasHeader(data, siteCol) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("site column %q not found", siteCol))
	}

	attrs := make(map[string]bool)
	for _, a := range config.AttributeColumns {
		if !hasHeader(data, a) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("attribute column %q not found", a))
		}
		attrs[a] = true
	}

	var species []string
	for _, h := range data.Headers {
		if h == siteCol || attrs[h] {
			continue
		}
		if !numericColumn(data, h) {
			attrs[h] = true
			continue
		}
		species = append(species, h)
	}
	if len(species) == 0 {
		return nil, apperrors.InvalidInput("no numeric species columns found")
	}

	siteIDs := make([]string, len(data.Rows))
	rows := make([][]float64, len(data.Rows))
	for i, row := range data.Rows {
		if siteCol != "" {
			siteIDs[i] = row[siteCol]
		}
		if siteIDs[i] == "" {
			siteIDs[i] = fmt.Sprintf("site_%d", i+1)
		}
		rows[i] = make([]float64, len(species))
		for j, sp := range species {
			cell := row[sp]
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, apperrors.InvalidInputf(err, "site %s species %s: %q is not a number", siteIDs[i], sp, cell)
			}
			rows[i][j] = v
		}
	}

	m, err := community.NewMatrix(rows, siteIDs, species)
	if err != nil {
		return nil, err
	}

	attributes := make(map[string][]string, len(attrs))
	for a := range attrs {
		col := make([]string, len(data.Rows))
		for i, row := range data.Rows {
			col[i] = row[a]
		}
		attributes[a] = col
	}

	log.Printf("[DataReader] community %q: %d sites, %d species, attributes %v",
		name, m.Sites(), m.Species(), attributeNames(attributes))
	return &community.Dataset{Name: name, Matrix: m, Attributes: attributes}, nil
}

// DetectSiteColumn picks the site identifier column: a conventional name
// with unique values, else the first column when its values are unique
// and non-numeric
func DetectSiteColumn(data *TableData) string {
	common := []string{"site", "site_id", "siteid", "plot", "plot_id", "sample", "sample_id", "id"}
	for _, name := range common {
		for _, h := range data.Headers {
			if strings.ToLower(h) == name && uniqueColumn(data, h) {
				return h
			}
		}
	}
	if len(data.Headers) > 0 {
		first := data.Headers[0]
		if uniqueColumn(data, first) && !numericColumn(data, first) {
			return first
		}
	}
	return ""
}

func hasHeader(data *TableData, name string) bool {
	for _, h := range data.Headers {
		if h == name {
			return true
		}
	}
	return false
}

func uniqueColumn(data *TableData, name string) bool {
	seen := make(map[string]bool, len(data.Rows))
	for _, row := range data.Rows {
		v := row[name]
		if v == "" || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// numericColumn reports whether every non-empty cell parses as a number
func numericColumn(data *TableData, name string) bool {
	for _, row := range data.Rows {
		v := row[name]
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return true
}

func attributeNames(attrs map[string][]string) []string {
	ds := community.Dataset{Attributes: attrs}
	return ds.AttributeNames()
}
