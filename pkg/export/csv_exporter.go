package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExporter writes datasets as RFC 4180 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType of the rendered output.
func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Extension of the rendered output.
func (e *CSVExporter) Extension() string { return "csv" }

// Write streams the dataset to w.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if err := data.Validate(); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(data.headers()); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(data.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
