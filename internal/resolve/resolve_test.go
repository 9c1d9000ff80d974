package resolve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
)

func entry(id catalog.EntryID, name string, rels ...catalog.RelationRef) *catalog.Entry {
	return &catalog.Entry{ID: id, Name: name, Relations: rels}
}

func rel(kind catalog.RelationKind, target catalog.EntryID) catalog.RelationRef {
	return catalog.RelationRef{Kind: kind, TargetID: target}
}

func TestResolveChain(t *testing.T) {
	entries := []*catalog.Entry{
		entry(1, "Bulbasaur", rel(catalog.RelationEvolutionSuccessor, 2)),
		entry(2, "Ivysaur",
			rel(catalog.RelationEvolutionPredecessor, 1),
			rel(catalog.RelationEvolutionSuccessor, 3)),
		entry(3, "Venusaur", rel(catalog.RelationEvolutionPredecessor, 2)),
	}

	res := Resolve(entries)
	require.Empty(t, res.Issues)
	require.Len(t, res.Index, 3)
	for _, e := range entries {
		for _, r := range e.Relations {
			require.True(t, r.Resolved, "relation %s -> %s", e.ID, r.TargetID)
		}
	}
}

func TestResolveDangling(t *testing.T) {
	entries := []*catalog.Entry{
		entry(1, "Bulbasaur", rel(catalog.RelationTypeAssociation, 999)),
	}

	res := Resolve(entries)
	require.False(t, entries[0].Relations[0].Resolved)
	require.Len(t, res.Issues, 1)
	require.Equal(t, Issue{
		Kind:         IssueDanglingReference,
		Entry:        1,
		RelationKind: catalog.RelationTypeAssociation,
		Target:       999,
	}, res.Issues[0])
}

func TestResolveCycle(t *testing.T) {
	entries := []*catalog.Entry{
		entry(1, "A",
			rel(catalog.RelationEvolutionSuccessor, 2),
			rel(catalog.RelationEvolutionPredecessor, 2)),
		entry(2, "B",
			rel(catalog.RelationEvolutionSuccessor, 1),
			rel(catalog.RelationEvolutionPredecessor, 1)),
	}

	res := Resolve(entries)
	require.Len(t, res.Issues, 1)
	issue := res.Issues[0]
	require.Equal(t, IssueEvolutionCycle, issue.Kind)
	require.Equal(t, []catalog.EntryID{1, 2}, issue.Members)
	require.Equal(t, "evolution cycle: #0001 -> #0002", issue.String())

	// Declared links are kept even inside a cycle.
	require.True(t, entries[0].Relations[0].Resolved)
}

func TestResolveSelfLoop(t *testing.T) {
	entries := []*catalog.Entry{
		entry(5, "Ouroboros",
			rel(catalog.RelationEvolutionSuccessor, 5),
			rel(catalog.RelationEvolutionPredecessor, 5)),
	}

	res := Resolve(entries)
	require.Len(t, res.Issues, 1)
	require.Equal(t, IssueEvolutionCycle, res.Issues[0].Kind)
	require.Equal(t, []catalog.EntryID{5}, res.Issues[0].Members)
}

func TestResolveAsymmetricEvolution(t *testing.T) {
	entries := []*catalog.Entry{
		entry(1, "Bulbasaur", rel(catalog.RelationEvolutionSuccessor, 2)),
		entry(2, "Ivysaur"),
	}

	res := Resolve(entries)
	require.Len(t, res.Issues, 1)
	require.Equal(t, Issue{
		Kind:         IssueAsymmetricEvolution,
		Entry:        1,
		RelationKind: catalog.RelationEvolutionSuccessor,
		Target:       2,
	}, res.Issues[0])
	require.True(t, entries[0].Relations[0].Resolved)
}

func TestResolveOrdersAlternateForms(t *testing.T) {
	entries := []*catalog.Entry{
		entry(1, "Base",
			rel(catalog.RelationTypeAssociation, 2),
			rel(catalog.RelationAlternateForm, 30),
			rel(catalog.RelationAlternateForm, 10),
			rel(catalog.RelationAlternateForm, 20)),
		entry(2, "Peer"),
		entry(10, "Form Ten"),
		entry(20, "Form Twenty"),
		entry(30, "Form Thirty"),
	}

	res := Resolve(entries)
	require.Empty(t, res.Issues)

	rels := entries[0].Relations
	require.Equal(t, catalog.RelationTypeAssociation, rels[0].Kind)
	require.Equal(t, catalog.EntryID(10), rels[1].TargetID)
	require.Equal(t, catalog.EntryID(20), rels[2].TargetID)
	require.Equal(t, catalog.EntryID(30), rels[3].TargetID)
}

func TestResolveIdempotent(t *testing.T) {
	build := func() []*catalog.Entry {
		return []*catalog.Entry{
			entry(1, "A",
				rel(catalog.RelationEvolutionSuccessor, 2),
				rel(catalog.RelationAlternateForm, 20),
				rel(catalog.RelationAlternateForm, 10)),
			entry(2, "B", rel(catalog.RelationEvolutionSuccessor, 1)),
			entry(10, "C"),
			entry(20, "D"),
			entry(3, "E", rel(catalog.RelationTypeAssociation, 404)),
		}
	}

	entries := build()
	first := Resolve(entries)
	snapshot := make([][]catalog.RelationRef, len(entries))
	for n, e := range entries {
		snapshot[n] = append([]catalog.RelationRef(nil), e.Relations...)
	}

	second := Resolve(entries)
	require.Equal(t, first.Issues, second.Issues)
	for n, e := range entries {
		require.Equal(t, snapshot[n], e.Relations)
	}
}
