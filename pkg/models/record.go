package models

// Pair identifies one fixture group in the test table.
type Pair struct {
	Size  int `json:"size"`
	Level int `json:"level"`
}

// SizeSample is one row of the byte-size probe. Either value may be NULL.
type SizeSample struct {
	Raw    *int64 `json:"raw"`    // octet_length(jb::text)
	Stored *int64 `json:"stored"` // pg_column_size(jb)
}

// Measurement is a single output row of a benchmark run.
// This is the row format shared by the runner, the renderer and the history catalog
type Measurement struct {
	SizeIndex   int      `json:"size_index"`
	BytesRaw    *int64   `json:"bytes_raw"`
	BytesStored *int64   `json:"bytes_stored"`
	Level       int      `json:"level"`
	Operator    string   `json:"operator"`
	MedianMs    *float64 `json:"execution_time_ms_median"` // nil when no sample produced a value
	Runs        int      `json:"runs"`
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
