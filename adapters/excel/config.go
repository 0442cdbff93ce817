package excel

// ReaderConfig controls how a table is split into site IDs, site
// attributes and species columns
type ReaderConfig struct {
	// SiteColumn names the site identifier column. Empty means detect it.
	SiteColumn string `json:"site_column" yaml:"site_column"`
	// AttributeColumns are kept as text attributes even when their values
	// are numeric. Non-numeric columns are always attributes.
	AttributeColumns []string `json:"attribute_columns" yaml:"attribute_columns"`
	// Sheet is the worksheet read from xlsx files
	Sheet string `json:"sheet" yaml:"sheet"`
	// DataPath is the gjson path of the record array in JSON input
	DataPath string `json:"data_path" yaml:"data_path"`
}

// DefaultReaderConfig returns sensible defaults for community tables
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Sheet: "Sheet1",
	}
}
