package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverPlan = `[
  {
    "Plan": {
      "Node Type": "Limit",
      "Startup Cost": 0.00,
      "Total Cost": 4.51,
      "Actual Total Time": 0.015,
      "Plans": [{"Node Type": "Seq Scan", "Relation Name": "test_jsonb_nesting"}]
    },
    "Planning Time": 0.087,
    "Triggers": [],
    "Execution Time": 1.234
  }
]`

func TestExecutionTime(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		wantOK bool
	}{
		{"array wrapped plan", serverPlan, 1.234, true},
		{"bare object", `{"Execution Time": 0.5, "Planning Time": 0.1}`, 0.5, true},
		{"nested under Plan", `[{"Plan": {"Node Type": "Result", "Execution Time": 2.75}}]`, 2.75, true},
		{"zero is a value", `{"Execution Time": 0}`, 0, true},
		{"top level wins over Plan", `{"Execution Time": 1, "Plan": {"Execution Time": 9}}`, 1, true},
		{"missing everywhere", `[{"Plan": {"Node Type": "Result"}}]`, 0, false},
		{"non numeric", `[{"Execution Time": "fast"}]`, 0, false},
		{"null value", `[{"Execution Time": null}]`, 0, false},
		{"empty array", `[]`, 0, false},
		{"array of scalars", `[1, 2]`, 0, false},
		{"plan not an object", `{"Plan": 3}`, 0, false},
		{"invalid json", `[{"Execution Time": `, 0, false},
		{"empty payload", ``, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExecutionTime([]byte(tt.raw))
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPlanningTime(t *testing.T) {
	got, ok := PlanningTime([]byte(serverPlan))
	assert.True(t, ok)
	assert.InDelta(t, 0.087, got, 1e-9)

	_, ok = PlanningTime([]byte(`{"Execution Time": 1}`))
	assert.False(t, ok)
}

func TestExecutionTime_NilPayload(t *testing.T) {
	_, ok := ExecutionTime(nil)
	assert.False(t, ok)
}

func TestLookup_FieldNamesAreLiteral(t *testing.T) {
	raw := []byte(`[{"a.b": 2, "a": {"b": 3}, "Plan": {"x*y": 4}}]`)

	v, ok := lookup(raw, "a.b")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = lookup(raw, "x*y")
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
}
