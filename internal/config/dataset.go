package config

import (
	"encoding/csv"
	"fmt"
	"os"
)

// LoadDataset reads a header-keyed CSV file into an ordered sequence of rows.
// Row order follows file order; rows with no values are skipped.
func LoadDataset(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV file %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file %s has no header row", path)
	}

	headers := records[0]
	rows := make([]map[string]string, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = value
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}

	return rows, nil
}
