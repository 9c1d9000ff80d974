// Package resolve runs after the whole batch has been parsed and verifies
// every cross reference against the full catalog. It never fails a build:
// references to entries that do not exist stay unresolved and are reported,
// suspicious evolution shapes are flagged, and the caller decides what to do
// with the report.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/dexbuilder/internal/catalog"
)

// IssueKind classifies a resolver finding.
type IssueKind string

const (
	// IssueDanglingReference marks a relation whose target is not in the
	// catalog. The relation stays unresolved and is not rendered.
	IssueDanglingReference IssueKind = "dangling_reference"

	// IssueEvolutionCycle marks a cycle among evolution-successor edges.
	// Reported once per cycle; the declared links are kept as-is.
	IssueEvolutionCycle IssueKind = "evolution_cycle"

	// IssueAsymmetricEvolution marks an entry that lists a successor which
	// does not list it back as predecessor.
	IssueAsymmetricEvolution IssueKind = "asymmetric_evolution"
)

// Issue is one resolver finding. Members is set for cycles only and lists the
// cycle's entries in ascending order.
type Issue struct {
	Kind         IssueKind
	Entry        catalog.EntryID
	RelationKind catalog.RelationKind
	Target       catalog.EntryID
	Members      []catalog.EntryID
}

func (i Issue) String() string {
	switch i.Kind {
	case IssueDanglingReference:
		return fmt.Sprintf("%s %s -> %s: target not in catalog", i.Entry, i.RelationKind, i.Target)
	case IssueEvolutionCycle:
		parts := make([]string, len(i.Members))
		for n, id := range i.Members {
			parts[n] = id.Display()
		}
		return "evolution cycle: " + strings.Join(parts, " -> ")
	case IssueAsymmetricEvolution:
		return fmt.Sprintf("%s lists successor %s but %s does not list predecessor %s",
			i.Entry, i.Target, i.Target, i.Entry)
	}
	return string(i.Kind)
}

// Result holds the lookup index over the resolved batch and the findings.
type Result struct {
	Index  map[catalog.EntryID]*catalog.Entry
	Issues []Issue
}

// Resolve verifies every relation in entries against the batch, mutating the
// entries in place: Resolved flags are set, and alternate-form references are
// reordered by ascending target identifier. Resolve is idempotent; running it
// again over the same entries yields equal relations and an equal report.
func Resolve(entries []*catalog.Entry) *Result {
	index := make(map[catalog.EntryID]*catalog.Entry, len(entries))
	for _, e := range entries {
		index[e.ID] = e
	}

	ordered := make([]*catalog.Entry, len(entries))
	copy(ordered, entries)
	catalog.SortEntries(ordered)

	res := &Result{Index: index}
	for _, e := range ordered {
		for n := range e.Relations {
			rel := &e.Relations[n]
			_, ok := index[rel.TargetID]
			rel.Resolved = ok
			if !ok {
				res.Issues = append(res.Issues, Issue{
					Kind:         IssueDanglingReference,
					Entry:        e.ID,
					RelationKind: rel.Kind,
					Target:       rel.TargetID,
				})
			}
		}
		orderForms(e)
	}

	for _, e := range ordered {
		for _, rel := range e.RelationsOfKind(catalog.RelationEvolutionSuccessor) {
			if !rel.Resolved {
				continue
			}
			if !listsPredecessor(index[rel.TargetID], e.ID) {
				res.Issues = append(res.Issues, Issue{
					Kind:         IssueAsymmetricEvolution,
					Entry:        e.ID,
					RelationKind: catalog.RelationEvolutionSuccessor,
					Target:       rel.TargetID,
				})
			}
		}
	}

	for _, members := range evolutionCycles(ordered) {
		res.Issues = append(res.Issues, Issue{Kind: IssueEvolutionCycle, Members: members})
	}
	return res
}

// orderForms rewrites the entry's alternate-form references in ascending
// target order, leaving every other relation where it was.
func orderForms(e *catalog.Entry) {
	var positions []int
	for n, rel := range e.Relations {
		if rel.Kind == catalog.RelationAlternateForm {
			positions = append(positions, n)
		}
	}
	if len(positions) < 2 {
		return
	}
	forms := make([]catalog.RelationRef, len(positions))
	for n, pos := range positions {
		forms[n] = e.Relations[pos]
	}
	sort.SliceStable(forms, func(i, j int) bool { return forms[i].TargetID < forms[j].TargetID })
	for n, pos := range positions {
		e.Relations[pos] = forms[n]
	}
}

func listsPredecessor(e *catalog.Entry, id catalog.EntryID) bool {
	for _, rel := range e.RelationsOfKind(catalog.RelationEvolutionPredecessor) {
		if rel.TargetID == id {
			return true
		}
	}
	return false
}

// evolutionCycles finds strongly connected components of the resolved
// evolution-successor graph. Components larger than one entry, and single
// entries that name themselves, are cycles. Each cycle is reported with its
// members ascending, ordered by smallest member.
func evolutionCycles(ordered []*catalog.Entry) [][]catalog.EntryID {
	adj := make(map[catalog.EntryID][]catalog.EntryID)
	for _, e := range ordered {
		for _, rel := range e.RelationsOfKind(catalog.RelationEvolutionSuccessor) {
			if rel.Resolved {
				adj[e.ID] = append(adj[e.ID], rel.TargetID)
			}
		}
	}

	num := make(map[catalog.EntryID]int)
	low := make(map[catalog.EntryID]int)
	onStack := make(map[catalog.EntryID]bool)
	var stack []catalog.EntryID
	var counter int
	var cycles [][]catalog.EntryID

	var connect func(v catalog.EntryID)
	connect = func(v catalog.EntryID) {
		num[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if _, seen := num[w]; !seen {
				connect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if num[w] < low[v] {
					low[v] = num[w]
				}
			}
		}

		if low[v] != num[v] {
			return
		}
		var comp []catalog.EntryID
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || selfLoop(v, adj[v]) {
			sort.Slice(comp, func(i, j int) bool { return comp[i] < comp[j] })
			cycles = append(cycles, comp)
		}
	}

	for _, e := range ordered {
		if _, seen := num[e.ID]; !seen {
			connect(e.ID)
		}
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func selfLoop(v catalog.EntryID, targets []catalog.EntryID) bool {
	for _, t := range targets {
		if t == v {
			return true
		}
	}
	return false
}
