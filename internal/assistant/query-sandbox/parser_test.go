// internal/assistant/query-sandbox/parser_test.go
package querysandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	tests := []string{
		`Community.objects.count()`,
		`Community.objects.filter(region__iexact="Region IX").count()`,
		`Community.objects.filter(Q(region="Region IX") | Q(region="Region X"), coastal=True)`,
		`Community.objects.values("region").annotate(total=Count("id")).order_by("-total")`,
		`Community.objects.all()[10:20]`,
		`Community.objects.all()[:5]`,
		`Community.objects.order_by("name")[3]`,
		`WorkItem.objects.filter(budget__gte=1.5).aggregate(Sum("budget"))`,
		`Community.objects.filter(id__in=[1, 2, 3]).exists()`,
		`Community.objects.filter(households__gt=-1)`,
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			n, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, src, n.String())
		})
	}
}

func TestParse_Shapes(t *testing.T) {
	n, err := Parse(`Community.objects.filter(region="Region IX").count()`)
	require.NoError(t, err)

	require.Equal(t, NodeCall, n.Kind)
	require.Equal(t, NodeAttribute, n.X.Kind)
	assert.Equal(t, "count", n.X.Ident)

	filter := n.X.X
	require.Equal(t, NodeCall, filter.Kind)
	require.Len(t, filter.Args, 1)
	kw := filter.Args[0]
	assert.Equal(t, NodeKeyword, kw.Kind)
	assert.Equal(t, "region", kw.Ident)
	assert.Equal(t, "Region IX", kw.Value.Str)

	objects := filter.X.X
	assert.Equal(t, NodeAttribute, objects.Kind)
	assert.Equal(t, "objects", objects.Ident)
	assert.Equal(t, NodeName, objects.X.Kind)
	assert.Equal(t, "Community", objects.X.Ident)
}

func TestParse_Statements(t *testing.T) {
	tests := []struct {
		src  string
		kind NodeKind
	}{
		{`x = Community.objects.all()`, NodeAssign},
		{`del Community`, NodeDelete},
		{`import os`, NodeImport},
		{`from os import path`, NodeImport},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			n, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, n.Kind)
		})
	}
}

func TestParse_Literals(t *testing.T) {
	n, err := Parse(`f('it\'s', "tab\there", 3, 2.5, -4, True, False, [])`)
	require.NoError(t, err)
	require.Len(t, n.Args, 8)

	assert.Equal(t, "it's", n.Args[0].Str)
	assert.Equal(t, "tab\there", n.Args[1].Str)
	assert.True(t, n.Args[2].IsInt)
	assert.Equal(t, 3.0, n.Args[2].Num)
	assert.False(t, n.Args[3].IsInt)
	assert.Equal(t, -4.0, n.Args[4].Num)
	assert.True(t, n.Args[5].Bool)
	assert.Equal(t, NodeBoolLit, n.Args[6].Kind)
	assert.Equal(t, NodeList, n.Args[7].Kind)
	assert.Empty(t, n.Args[7].Args)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"multiple statements", `Community.objects.all(); Community.objects.count()`, "multiple statements"},
		{"operator", `Community.objects.count() + 1`, "unexpected character"},
		{"braces", `Community.objects.filter(**{"region": "x"})`, "unexpected character"},
		{"unterminated string", `Community.objects.filter(region="x)`, "unterminated string"},
		{"bad escape", `Community.objects.filter(region="\x41")`, "unsupported escape"},
		{"unclosed call", `Community.objects.filter(region="x"`, "expected )"},
		{"empty subscript", `Community.objects.all()[]`, "empty subscript"},
		{"dangling dot", `Community.`, "expected attribute name"},
		{"trailing tokens", `Community.objects.count() Community`, "unexpected"},
		{"minus without number", `Community.objects.all()[-x]`, "number after '-'"},
		{"too deep", strings.Repeat("(", 70) + "1" + strings.Repeat(")", 70), "nested too deeply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWalk(t *testing.T) {
	n, err := Parse(`Community.objects.filter(Q(region="Region IX") | Q(coastal=True)).count()`)
	require.NoError(t, err)

	var names []string
	require.NoError(t, Walk(n, func(x *Node) error {
		if x.Kind == NodeName {
			names = append(names, x.Ident)
		}
		return nil
	}))
	assert.Equal(t, []string{"Community", "Q", "Q"}, names)
}
