package analyst

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVPreview is the output of load_csv.
type CSVPreview struct {
	Columns   []string            `json:"columns"`
	Preview   []map[string]string `json:"preview"`
	TotalRows int                 `json:"total_rows"`
}

// LoadCSV reads the header of path and up to rows records, counting all of
// them.
func LoadCSV(path string, rows int) (CSVPreview, error) {
	f, err := os.Open(path)
	if err != nil {
		return CSVPreview{}, err
	}
	defer f.Close()
	return readCSV(f, rows)
}

func readCSV(r io.Reader, rows int) (CSVPreview, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	out := CSVPreview{Columns: []string{}, Preview: []map[string]string{}}
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return out, nil
	}
	if err != nil {
		return CSVPreview{}, fmt.Errorf("read header: %w", err)
	}
	out.Columns = header

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return CSVPreview{}, fmt.Errorf("read row %d: %w", out.TotalRows+1, err)
		}
		out.TotalRows++
		if out.TotalRows > rows {
			continue
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		out.Preview = append(out.Preview, row)
	}
	return out, nil
}
