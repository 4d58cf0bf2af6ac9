package model

// ExportFormat names a playlist file format an export writer produces.
type ExportFormat string

const (
	ExportFormatM3U  ExportFormat = "m3u"
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions is the small options record consumed by export writers.
// Writers must reject a non-finalized plan.
type ExportOptions struct {
	Format          ExportFormat `json:"format"`
	OutputPath      string       `json:"outputPath"`
	IncludeMetadata bool         `json:"includeMetadata"`
	RelativePaths   bool         `json:"relativePaths"`
}
