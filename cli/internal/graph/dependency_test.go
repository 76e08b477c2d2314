package graph

import (
	"errors"
	"testing"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flows(pairs ...string) []*runtime.Flow {
	out := make([]*runtime.Flow, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, &runtime.Flow{ID: pairs[i], DependsOn: pairs[i+1]})
	}
	return out
}

func TestBuildGraph_NoDependencies(t *testing.T) {
	g, err := BuildGraph(flows("signup", "", "catalog", ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"catalog", "signup"}, g.Nodes())
	assert.Equal(t, [][]string{{"catalog", "signup"}}, g.Levels())
	assert.Empty(t, g.GetDependencies("signup"))
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	g, err := BuildGraph(flows("checkout", "cart", "cart", "login", "login", ""))
	require.NoError(t, err)

	assert.Equal(t, []string{"login", "cart", "checkout"}, g.TopologicalSort())
	assert.Equal(t, [][]string{{"login"}, {"cart"}, {"checkout"}}, g.Levels())
	assert.Equal(t, []string{"login"}, g.GetDependencies("cart"))
	assert.Equal(t, []string{"checkout"}, g.GetDependents("cart"))
}

func TestLevels_FanOut(t *testing.T) {
	g, err := BuildGraph(flows(
		"refund", "order",
		"invoice", "order",
		"order", "login",
		"login", "",
		"health", "",
	))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"health", "login"},
		{"order"},
		{"invoice", "refund"},
	}, g.Levels())
	assert.Equal(t, []string{"invoice", "refund"}, g.GetDependents("order"))
}

func TestBuildGraph_MissingDependency(t *testing.T) {
	_, err := BuildGraph(flows("order", "login"))
	require.Error(t, err)

	var gerr *GraphError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, ErrorMissingDependency, gerr.Type)
	assert.Equal(t, "order", gerr.FlowID)
	assert.Equal(t, "login", gerr.Details["dependency"])
	assert.Contains(t, err.Error(), "not defined")
}

func TestBuildGraph_Cycle(t *testing.T) {
	tests := []struct {
		name  string
		flows []*runtime.Flow
	}{
		{"self", flows("a", "a")},
		{"pair", flows("a", "b", "b", "a")},
		{"triangle", flows("a", "c", "b", "a", "c", "b", "d", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildGraph(tt.flows)
			require.Error(t, err)

			var gerr *GraphError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, ErrorCircularDependency, gerr.Type)
			assert.Contains(t, err.Error(), "circular dependency detected")
			assert.NotEmpty(t, gerr.Details["cycle"])
		})
	}
}

func TestSubgraph(t *testing.T) {
	g, err := BuildGraph(flows(
		"checkout", "cart",
		"cart", "login",
		"login", "",
		"health", "",
	))
	require.NoError(t, err)

	sub, err := g.Subgraph([]string{"cart"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cart", "login"}, sub.Nodes())
	assert.Equal(t, "cart", sub.Flow("cart").ID)

	_, err = g.Subgraph([]string{"ghost"})
	var gerr *GraphError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, ErrorInvalidGraph, gerr.Type)
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "MissingDependency", ErrorMissingDependency.String())
	assert.Equal(t, "CircularDependency", ErrorCircularDependency.String())
	assert.Equal(t, "InvalidGraph", ErrorInvalidGraph.String())
	assert.Equal(t, "Unknown", ErrorType(42).String())
}
