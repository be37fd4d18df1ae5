package mquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffQueriesAddRemove(t *testing.T) {
	old := []Query{{Name: "Section1/Keep", Expression: "1"}}
	new := []Query{
		{Name: "Section1/Keep", Expression: "1"},
		{Name: "Section1/Fresh", Expression: "2"},
	}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, QueryAdded, changes[0].Kind)
	assert.Equal(t, "Section1/Fresh", changes[0].Name)

	reverse := DiffQueries(new, old)
	require.Len(t, reverse, 1)
	assert.Equal(t, QueryRemoved, reverse[0].Kind)
}

func TestDiffQueriesRenameDetection(t *testing.T) {
	old := []Query{{Name: "Section1/Old", Expression: "Table.FirstN(Source, 5)"}}
	new := []Query{{Name: "Section1/New", Expression: "Table.FirstN( Source, 5 )"}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, QueryRenamed, changes[0].Kind)
	assert.Equal(t, "Section1/Old", changes[0].Name)
	assert.Equal(t, "Section1/New", changes[0].NewName)
}

func TestDiffQueriesAmbiguousRenameStaysAddRemove(t *testing.T) {
	old := []Query{{Name: "S/A", Expression: "1"}}
	new := []Query{
		{Name: "S/B", Expression: "1"},
		{Name: "S/C", Expression: "1"},
	}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 3)
	kinds := map[ChangeKind]int{}
	for _, c := range changes {
		kinds[c.Kind]++
	}
	assert.Equal(t, 1, kinds[QueryRemoved])
	assert.Equal(t, 2, kinds[QueryAdded])
}

func TestDiffQueriesFormattingOnly(t *testing.T) {
	old := []Query{{Name: "S/Q", Expression: "1+(2*3)"}}
	new := []Query{{Name: "S/Q", Expression: "1 + 2 * 3"}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, QueryDefinitionChanged, changes[0].Kind)
	assert.Equal(t, FormattingOnly, changes[0].DefinitionKind)
	assert.Empty(t, changes[0].Steps)
}

func TestDiffQueriesSemanticStepParamsChanged(t *testing.T) {
	old := []Query{{
		Name: "Section1/SalesWithRegions",
		Expression: `let
			Source = Csv.Document("sales.csv"),
			Filtered = Table.SelectRows(Source, each [Region] <> null),
			Result = Table.FirstN(Filtered, 5)
		in Result`,
	}}
	new := []Query{{
		Name: "Section1/SalesWithRegions",
		Expression: `let
			Source = Csv.Document("sales.csv"),
			Filtered = Table.SelectRows(Source, each [Region] = "West"),
			Result = Table.FirstN(Filtered, 5)
		in Result`,
	}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	change := changes[0]
	assert.Equal(t, QueryDefinitionChanged, change.Kind)
	assert.Equal(t, Semantic, change.DefinitionKind)

	require.Len(t, change.Steps, 1)
	assert.Equal(t, StepModified, change.Steps[0].Kind)
	assert.Equal(t, "Filtered", change.Steps[0].Name)
	assert.Equal(t, []StepDetail{ParamsChanged}, change.Steps[0].Details)
}

func TestDiffQueriesStepAddedRemoved(t *testing.T) {
	old := []Query{{
		Name:       "S/Q",
		Expression: `let Source = GetData(), A = Step1(Source), B = Step2(A) in B`,
	}}
	new := []Query{{
		Name:       "S/Q",
		Expression: `let Source = GetData(), A = Step1(Source) in A`,
	}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	require.Len(t, changes[0].Steps, 1)
	assert.Equal(t, StepRemoved, changes[0].Steps[0].Kind)
	assert.Equal(t, "B", changes[0].Steps[0].Name)
}

func TestDiffQueriesStepRenamed(t *testing.T) {
	old := []Query{{
		Name:       "S/Q",
		Expression: `let Source = GetData(), Filtered = Keep(Source) in Filtered`,
	}}
	new := []Query{{
		Name:       "S/Q",
		Expression: `let Source = GetData(), Selected = Keep(Source) in Selected`,
	}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	require.NotEmpty(t, changes[0].Steps)

	var sawRename bool
	for _, step := range changes[0].Steps {
		if step.Kind == StepModified && step.Details[0] == NameChanged {
			sawRename = true
			assert.Equal(t, "Selected", step.Name)
		}
	}
	assert.True(t, sawRename)
}

func TestDiffQueriesMetadataChanged(t *testing.T) {
	old := []Query{{Name: "S/Q", Expression: "1", LoadToSheet: true}}
	new := []Query{{Name: "S/Q", Expression: "1", LoadToModel: true}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, QueryMetadataChanged, changes[0].Kind)
}

func TestDiffQueriesUnparseableFallsBackToOpaque(t *testing.T) {
	old := []Query{{Name: "S/Q", Expression: "meta ((("}}
	new := []Query{{Name: "S/Q", Expression: "meta  ((("}}

	changes := DiffQueries(old, new)
	require.Len(t, changes, 1)
	assert.Equal(t, QueryDefinitionChanged, changes[0].Kind)
	assert.Equal(t, FormattingOnly, changes[0].DefinitionKind,
		"identical token streams differ only in whitespace")
}
