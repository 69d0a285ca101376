package geo

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Source provides the current geography index.
type Source interface {
	Index() *Index
}

var _ Source = (*Index)(nil)

// Index holds the four flat id-keyed tables together with adjacency lists
// keyed by parent id. It is immutable once built.
type Index struct {
	nodes    [levelCount]map[string]Node
	ordered  [levelCount][]Node
	children [levelCount]map[string][]Node

	orphans    []Node
	duplicates []Node
}

// NewIndex builds an index from ds. Duplicate ids within a level keep the
// first occurrence; nodes whose parent is missing are kept in the flat table
// but are not reachable through dependent lookups.
func NewIndex(ds Dataset) *Index {
	ix := &Index{}
	for l := Division; l < levelCount; l++ {
		src := ds.level(l)
		ix.nodes[l] = make(map[string]Node, len(src))
		ix.children[l] = make(map[string][]Node)
		ix.ordered[l] = make([]Node, 0, len(src))
		for _, n := range src {
			n.Level = l
			if _, dup := ix.nodes[l][n.ID]; dup {
				ix.duplicates = append(ix.duplicates, n)
				continue
			}
			ix.nodes[l][n.ID] = n
			ix.ordered[l] = append(ix.ordered[l], n)
		}
	}

	for l := District; l < levelCount; l++ {
		parent, _ := l.Parent()
		for _, n := range ix.ordered[l] {
			if _, ok := ix.nodes[parent][n.ParentID]; !ok {
				ix.orphans = append(ix.orphans, n)
				continue
			}
			ix.children[l][n.ParentID] = append(ix.children[l][n.ParentID], n)
		}
	}
	return ix
}

// Empty returns an index with no entries.
func Empty() *Index {
	return NewIndex(Dataset{})
}

// Index implements Source.
func (ix *Index) Index() *Index { return ix }

// Len returns the number of entries at level l.
func (ix *Index) Len(l Level) int {
	if l < Division || l >= levelCount {
		return 0
	}
	return len(ix.ordered[l])
}

// IsEmpty reports whether the index has no divisions.
func (ix *Index) IsEmpty() bool {
	return ix.Len(Division) == 0
}

// Lookup returns the node with id at level l.
func (ix *Index) Lookup(l Level, id string) (Node, bool) {
	if l < Division || l >= levelCount {
		return Node{}, false
	}
	n, ok := ix.nodes[l][id]
	return n, ok
}

// Divisions returns all divisions in dataset order.
func (ix *Index) Divisions() []Node {
	return slices.Clone(ix.ordered[Division])
}

// Districts returns the districts whose parent is divisionID.
func (ix *Index) Districts(divisionID string) []Node {
	return ix.Children(District, divisionID)
}

// Upazilas returns the upazilas whose parent is districtID.
func (ix *Index) Upazilas(districtID string) []Node {
	return ix.Children(Upazila, districtID)
}

// Unions returns the unions whose parent is upazilaID.
func (ix *Index) Unions(upazilaID string) []Node {
	return ix.Children(Union, upazilaID)
}

// Children returns the nodes at level l whose parent id is parentID.
func (ix *Index) Children(l Level, parentID string) []Node {
	if l <= Division || l >= levelCount {
		return nil
	}
	return slices.Clone(ix.children[l][parentID])
}

// Validate reports orphaned and duplicate entries found while building.
func (ix *Index) Validate() error {
	var problems []string
	for _, n := range ix.orphans {
		problems = append(problems, fmt.Sprintf("%s %q references missing parent %q", n.Level, n.ID, n.ParentID))
	}
	for _, n := range ix.duplicates {
		problems = append(problems, fmt.Sprintf("%s %q is duplicated", n.Level, n.ID))
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Errorf("geography dataset: %s", strings.Join(problems, "; "))
}
