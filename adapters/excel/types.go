package excel

// RawRowData represents a row of raw table data as string key-value pairs
type RawRowData map[string]string

// TableData represents a complete header-plus-rows table before the
// community matrix is extracted from it
type TableData struct {
	Headers []string     // Column headers in file order
	Rows    []RawRowData // Data rows
}
