// Package explain extracts timings from PostgreSQL EXPLAIN (ANALYZE, FORMAT JSON)
// output.
//
// The server returns a one-element JSON array wrapping the plan object, with
// "Execution Time" and "Planning Time" at the top level of that object. Some
// drivers hand back the object unwrapped, and some older tooling nests the
// timings under "Plan"; all three shapes are accepted. Other shapes are treated
// as carrying no timing rather than as errors.
package explain

import (
	"github.com/tidwall/gjson"
)

const (
	fieldExecutionTime = "Execution Time"
	fieldPlanningTime  = "Planning Time"
	fieldPlan          = "Plan"
)

// ExecutionTime returns the reported execution time in milliseconds.
func ExecutionTime(raw []byte) (float64, bool) {
	return lookup(raw, fieldExecutionTime)
}

// PlanningTime returns the reported planning time in milliseconds.
func PlanningTime(raw []byte) (float64, bool) {
	return lookup(raw, fieldPlanningTime)
}

func lookup(raw []byte, field string) (float64, bool) {
	root, ok := planObject(raw)
	if !ok {
		return 0, false
	}

	if v, ok := number(root.Get(gjson.Escape(field))); ok {
		return v, true
	}
	plan := root.Get(fieldPlan)
	if !plan.IsObject() {
		return 0, false
	}
	return number(plan.Get(gjson.Escape(field)))
}

// planObject unwraps the top-level array if present.
func planObject(raw []byte) (gjson.Result, bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}

	res := gjson.ParseBytes(raw)
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return gjson.Result{}, false
		}
		res = items[0]
	}
	if !res.IsObject() {
		return gjson.Result{}, false
	}
	return res, true
}

func number(r gjson.Result) (float64, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	return r.Float(), true
}
