package operator

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpr(t *testing.T) {
	tests := []struct {
		name     string
		op       Operator
		level    int
		expected string
	}{
		{"arrow level 0", Arrow, 0, "jb -> 'key'"},
		{"path level 0", Path, 0, "jb #> '{key}'"},
		{"subscript level 0", Subscript, 0, "jb['key']"},
		{"jsonpath level 0", JSONPath, 0, "jsonb_path_query_first(jb, '$.key')"},
		{"arrow level 2", Arrow, 2, "jb -> 'obj' -> 'obj' -> 'key'"},
		{"path level 2", Path, 2, "jb #> '{obj,obj,key}'"},
		{"subscript level 2", Subscript, 2, "jb['obj']['obj']['key']"},
		{"jsonpath level 2", JSONPath, 2, "jsonb_path_query_first(jb, '$.obj.obj.key')"},
		{"path level 4", Path, 4, "jb #> '{obj,obj,obj,obj,key}'"},
		{"negative level clamps", Arrow, -3, "jb -> 'key'"},
		{"unknown operator", Operator("bogus"), 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.op.Expr("jb", tt.level))
		})
	}
}

func TestPathQuery(t *testing.T) {
	assert.Equal(t, "$.key", PathQuery(0))
	assert.Equal(t, "$.obj.obj.obj.key", PathQuery(3))
}

func TestAll_FixedOrder(t *testing.T) {
	ops := All()
	assert.Equal(t, []Operator{Arrow, Path, Subscript, JSONPath}, ops)

	// Callers get a copy
	ops[0] = "mutated"
	assert.Equal(t, Arrow, All()[0])
}

func TestParse(t *testing.T) {
	for _, op := range All() {
		parsed, err := Parse(" " + strings.ToUpper(string(op)) + " ")
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}

	_, err := Parse("dot")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "-> operator", Arrow.Title())
	assert.Equal(t, "#> operator", Path.Title())
	assert.Equal(t, "[] subscript", Subscript.Title())
	assert.Equal(t, "jsonpath", JSONPath.Title())
	assert.Equal(t, "other", Operator("other").Title())
}

func TestProperty_ExpressionsShareKeyChain(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every operator names level wrappers then the target", prop.ForAll(
		func(level int) bool {
			wrappers := strings.Repeat("'obj'", level)
			arrow := Arrow.Expr("jb", level)
			subscript := Subscript.Expr("jb", level)

			return strings.Count(arrow, "'obj'") == level &&
				strings.Count(subscript, "'obj'") == level &&
				strings.Count(Path.Expr("jb", level), "obj") == level &&
				strings.Count(JSONPath.Expr("jb", level), "obj") == level &&
				strings.HasSuffix(arrow, "-> 'key'") &&
				strings.HasSuffix(subscript, "['key']") &&
				strings.Count(strings.ReplaceAll(arrow, " -> ", ""), "'obj'") == strings.Count(wrappers, "'obj'") &&
				len(Keys(level)) == level+1
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
