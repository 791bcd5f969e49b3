package operator

import (
	"fmt"
	"strings"
)

// Operator is one of the jsonb access syntaxes under test
type Operator string

const (
	Arrow     Operator = "arrow"
	Path      Operator = "path"
	Subscript Operator = "subscript"
	JSONPath  Operator = "jsonpath"
)

// Key names used by the fixture documents: level wrapper objects named
// "obj" around a final "key".
const (
	WrapperKey = "obj"
	TargetKey  = "key"
)

var all = []Operator{Arrow, Path, Subscript, JSONPath}

var titles = map[Operator]string{
	Arrow:     "-> operator",
	Path:      "#> operator",
	Subscript: "[] subscript",
	JSONPath:  "jsonpath",
}

// All returns the operators in output order.
func All() []Operator {
	out := make([]Operator, len(all))
	copy(out, all)
	return out
}

// Parse converts a stored operator name back into an Operator.
func Parse(s string) (Operator, error) {
	op := Operator(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := titles[op]; !ok {
		return "", fmt.Errorf("unknown operator %q (expected arrow, path, subscript or jsonpath)", s)
	}
	return op, nil
}

// Title returns the chart title for the operator.
func (o Operator) Title() string {
	if t, ok := titles[o]; ok {
		return t
	}
	return string(o)
}

func (o Operator) String() string { return string(o) }

// Keys returns the key chain reaching the target at the given nesting level.
func Keys(level int) []string {
	if level < 0 {
		level = 0
	}
	keys := make([]string, 0, level+1)
	for i := 0; i < level; i++ {
		keys = append(keys, WrapperKey)
	}
	return append(keys, TargetKey)
}

// PathQuery returns the SQL/JSON path selecting the target, e.g. $.obj.obj.key
func PathQuery(level int) string {
	return "$." + strings.Join(Keys(level), ".")
}

// Expr builds the select-list expression accessing the target key of column
// with this operator.
func (o Operator) Expr(column string, level int) string {
	keys := Keys(level)

	var b strings.Builder
	switch o {
	case Arrow:
		b.WriteString(column)
		for _, k := range keys {
			b.WriteString(" -> '")
			b.WriteString(k)
			b.WriteString("'")
		}
	case Path:
		b.WriteString(column)
		b.WriteString(" #> '{")
		b.WriteString(strings.Join(keys, ","))
		b.WriteString("}'")
	case Subscript:
		b.WriteString(column)
		for _, k := range keys {
			b.WriteString("['")
			b.WriteString(k)
			b.WriteString("']")
		}
	case JSONPath:
		fmt.Fprintf(&b, "jsonb_path_query_first(%s, '%s')", column, PathQuery(level))
	default:
		return ""
	}
	return b.String()
}
