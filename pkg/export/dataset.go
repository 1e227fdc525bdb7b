package export

import "fmt"

// Column describes one exported field. Width is a relative weight used by the PDF layout.
type Column struct {
	Header string
	Width  float64
}

// Dataset defines tabular export content. Each row holds one value per column.
type Dataset struct {
	Title   string
	Columns []Column
	Rows    [][]string
}

// Validate checks that every row lines up with the column set.
func (d Dataset) Validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("row %d has %d values, want %d", i, len(row), len(d.Columns))
		}
	}
	return nil
}

func (d Dataset) headers() []string {
	out := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		out[i] = col.Header
	}
	return out
}
