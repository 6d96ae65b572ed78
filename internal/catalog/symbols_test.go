package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSymbol(id, name, path string) SymbolRow {
	return SymbolRow{
		ID:        id,
		FilePath:  path,
		Name:      name,
		Kind:      "function_declaration",
		StartLine: 1,
		StartCol:  0,
		EndLine:   10,
		EndCol:    1,
		Language:  "go",
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	row := SymbolRow{
		ID:        "s1",
		FilePath:  "src/server.go",
		Name:      "handleRequest",
		Kind:      "function_declaration",
		StartLine: 10,
		StartCol:  0,
		EndLine:   42,
		EndCol:    1,
		Language:  "go",
	}
	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{row}))

	got, err := cat.GetSymbol(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row, *got)
}

func TestCallEdgeRoundTrip(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{testSymbol("s1", "caller", "a.go")}))

	unresolved := CallEdgeRow{
		ID:           "e1",
		FromSymbolID: "s1",
		TargetName:   "callee",
		CallType:     "Call",
		Line:         5,
		Col:          8,
	}
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{unresolved}))

	got, err := cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, unresolved, *got)
	assert.False(t, got.IsResolved)
	assert.Empty(t, got.ToSymbolID)

	resolved := unresolved
	resolved.ToSymbolID = "s2"
	resolved.IsResolved = true
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{resolved}))

	got, err = cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, resolved, *got)
	assert.True(t, got.IsResolved)
}

func TestResolveCallEdge(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{
		testSymbol("s1", "caller", "a.go"),
		testSymbol("s2", "callee", "b.go"),
	}))
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{{
		ID: "e1", FromSymbolID: "s1", TargetName: "callee", CallType: "Call", Line: 3, Col: 0,
	}}))

	require.NoError(t, cat.ResolveCallEdge(ctx, "e1", "s2"))

	got, err := cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsResolved)
	assert.Equal(t, "s2", got.ToSymbolID)

	edges, err := cat.UnresolvedCallEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCallersAndCallees(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{
		testSymbol("s1", "main", "a.go"),
		testSymbol("s2", "helper", "b.go"),
		testSymbol("s3", "other", "c.go"),
	}))
	require.NoError(t, cat.AttachSymbols(ctx, "main", []string{"s1", "s2"}))
	require.NoError(t, cat.AttachSymbols(ctx, "feature", []string{"s3"}))

	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{
		{ID: "e1", FromSymbolID: "s1", TargetName: "helper", CallType: "Call", Line: 3, Col: 1},
		{ID: "e2", FromSymbolID: "s3", TargetName: "helper", CallType: "Call", Line: 7, Col: 1},
	}))

	// Branch-filtered: only the edge from a symbol on "main" shows up.
	callers, err := cat.Callers(ctx, "helper", "main")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "e1", callers[0].Edge.ID)
	assert.Equal(t, "main", callers[0].Symbol.Name)

	callers, err = cat.Callers(ctx, "helper", "feature")
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, "e2", callers[0].Edge.ID)

	callees, err := cat.Callees(ctx, "s1", "main")
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, "helper", callees[0].Edge.TargetName)

	callees, err = cat.Callees(ctx, "s1", "feature")
	require.NoError(t, err)
	assert.Empty(t, callees, "s1 is not on feature")
}

func TestDeleteSymbolsByFile(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{
		testSymbol("s1", "fn1", "a.go"),
		testSymbol("s2", "fn2", "a.go"),
		testSymbol("s3", "fn3", "b.go"),
	}))
	require.NoError(t, cat.AttachSymbols(ctx, "main", []string{"s1", "s2", "s3"}))
	require.NoError(t, cat.UpsertCallEdges(ctx, []CallEdgeRow{
		{ID: "e1", FromSymbolID: "s1", TargetName: "fn3", CallType: "Call", Line: 2, Col: 0},
		{ID: "e2", FromSymbolID: "s3", TargetName: "fn1", CallType: "Call", Line: 4, Col: 0},
	}))

	removed, err := cat.DeleteSymbolsByFile(ctx, "a.go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"s1", "s2"}, removed)

	got, err := cat.GetSymbol(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Edges from a.go's symbols are gone; edges from b.go survive even
	// though they target a deleted symbol by name.
	edge, err := cat.GetCallEdge(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, edge)

	edge, err = cat.GetCallEdge(ctx, "e2")
	require.NoError(t, err)
	assert.NotNil(t, edge)

	ids, err := cat.BranchSymbolIDs(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids)
}

func TestFindSymbolsByName(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertSymbols(ctx, []SymbolRow{
		testSymbol("s1", "run", "a.go"),
		testSymbol("s2", "run", "b.go"),
		testSymbol("s3", "stop", "c.go"),
	}))

	rows, err := cat.FindSymbolsByName(ctx, "run")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
