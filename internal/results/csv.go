package results

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/isaacvitor/postgresql-nutshell/pkg/models"
)

// Column names in output order. This header is the contract between the
// runner and the renderer and must not change between variants.
const (
	ColSizeIndex   = "size_index"
	ColBytesRaw    = "bytes_raw"
	ColBytesStored = "bytes_stored"
	ColLevel       = "level"
	ColOperator    = "operator"
	ColMedianMs    = "execution_time_ms_median"
	ColRuns        = "runs"
)

// Columns returns the fixed header.
func Columns() []string {
	return []string{ColSizeIndex, ColBytesRaw, ColBytesStored, ColLevel, ColOperator, ColMedianMs, ColRuns}
}

// WriteCSV writes the header and all rows. Absent values are empty cells.
func WriteCSV(w io.Writer, rows []models.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(Columns()))
	for i, m := range rows {
		record[0] = strconv.Itoa(m.SizeIndex)
		record[1] = formatInt(m.BytesRaw)
		record[2] = formatInt(m.BytesStored)
		record[3] = strconv.Itoa(m.Level)
		record[4] = m.Operator
		record[5] = formatFloat(m.MedianMs)
		record[6] = strconv.Itoa(m.Runs)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeCSV renders rows into a byte slice for a single storage write.
func EncodeCSV(rows []models.Measurement) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses a file produced by WriteCSV. Columns may appear in any order;
// extra columns are ignored but every documented column must be present.
func ReadCSV(r io.Reader) ([]models.Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("empty results file")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns() {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("results file is missing column %q", col)
		}
	}

	var rows []models.Measurement
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			i := idx[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		var m models.Measurement
		if m.SizeIndex, err = strconv.Atoi(get(ColSizeIndex)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColSizeIndex, err)
		}
		if m.Level, err = strconv.Atoi(get(ColLevel)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColLevel, err)
		}
		if m.Runs, err = strconv.Atoi(get(ColRuns)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColRuns, err)
		}
		if m.BytesRaw, err = parseInt(get(ColBytesRaw)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColBytesRaw, err)
		}
		if m.BytesStored, err = parseInt(get(ColBytesStored)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColBytesStored, err)
		}
		if m.MedianMs, err = parseFloat(get(ColMedianMs)); err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColMedianMs, err)
		}
		m.Operator = get(ColOperator)

		rows = append(rows, m)
	}
	return rows, nil
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Tolerate float-formatted integers such as "123.0"
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil, err
		}
		v = int64(f)
	}
	return &v, nil
}

func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
