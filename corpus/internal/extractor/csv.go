package extractor

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// ExtractCSV renders a CSV file as readable lines. The header row labels
// each value, so "name,price\nWidget,9.99" becomes "name: Widget, price: 9.99".
func ExtractCSV(data []byte) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	header := records[0]
	var sb strings.Builder

	if len(records) == 1 {
		// Header-only file: keep the column names as text.
		sb.WriteString(strings.Join(header, ", "))
	}

	for _, row := range records[1:] {
		var parts []string
		for i, val := range row {
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				parts = append(parts, strings.TrimSpace(header[i])+": "+val)
			} else {
				parts = append(parts, val)
			}
		}
		if len(parts) == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.Join(parts, ", "))
	}

	return &Result{
		Text: sb.String(),
		Metadata: map[string]string{
			"extractor": "csv",
			"rows":      strconv.Itoa(len(records) - 1),
			"columns":   strconv.Itoa(len(header)),
		},
	}, nil
}
