package sectionindex

import (
	"fmt"
	"sort"

	"github.com/corvid-labs/sectra/core"
)

// Tree is an immutable, ordered section tree for one source. Sections live
// in an arena indexed by id, with parent and child links stored as ids, so
// the tree serializes trivially and is safe to share between readers.
type Tree struct {
	sections []*core.Section // arena, document order; section Id == index+1
	children map[core.ID][]core.ID
	roots    []core.ID
}

// NewTree builds a Tree from stored sections. Sections must be in document
// order with 1-based contiguous ids, as produced by the Indexer.
func NewTree(sections []*core.Section) (*Tree, error) {
	t := &Tree{
		sections: sections,
		children: make(map[core.ID][]core.ID),
	}
	for i, sec := range sections {
		if sec.Id != core.ID(i+1) {
			return nil, fmt.Errorf("section arena out of order: index %d holds id %d", i, sec.Id)
		}
		if sec.ParentId == 0 {
			t.roots = append(t.roots, sec.Id)
		} else {
			t.children[sec.ParentId] = append(t.children[sec.ParentId], sec.Id)
		}
	}
	return t, nil
}

// Sections returns the arena in document order.
func (t *Tree) Sections() []*core.Section {
	return t.sections
}

// Len returns the number of sections.
func (t *Tree) Len() int {
	return len(t.sections)
}

// Section returns the section with the given id, or nil.
func (t *Tree) Section(id core.ID) *core.Section {
	idx := int(id) - 1
	if idx < 0 || idx >= len(t.sections) {
		return nil
	}
	return t.sections[idx]
}

// Children returns the ordered child ids of a section. Pass 0 for roots.
func (t *Tree) Children(id core.ID) []core.ID {
	if id == 0 {
		return t.roots
	}
	return t.children[id]
}

// Resolve maps a char interval to its enclosing section path, root to leaf.
// Anchoring uses start only: the interval belongs to the deepest section
// containing its start offset. When end runs past that section's interval
// the returned path is flagged as crossing, never truncated. Returns
// core.ErrResolution when start falls outside all known ranges.
func (t *Tree) Resolve(start, end int) (*core.SectionPath, error) {
	id := t.locate(t.roots, start)
	if id == 0 {
		return &core.SectionPath{Unsectioned: true},
			fmt.Errorf("%w: offset %d in source with %d sections", core.ErrResolution, start, len(t.sections))
	}

	// Descend while a child contains the start offset. Siblings are
	// disjoint, so at most one child can match at each level.
	for {
		child := t.locate(t.children[id], start)
		if child == 0 {
			break
		}
		id = child
	}

	leaf := t.Section(id)
	path := &core.SectionPath{Crossing: end > leaf.End}
	for cur := leaf; cur != nil; cur = t.Section(cur.ParentId) {
		path.Sections = append(path.Sections, cur)
	}
	// Reverse into root-to-leaf order.
	for i, j := 0, len(path.Sections)-1; i < j; i, j = i+1, j-1 {
		path.Sections[i], path.Sections[j] = path.Sections[j], path.Sections[i]
	}
	return path, nil
}

// locate finds the unique id among ids whose interval contains the offset,
// by binary search over the start-ordered siblings. Returns 0 when none
// contains it.
func (t *Tree) locate(ids []core.ID, offset int) core.ID {
	// First sibling starting after the offset; the candidate is its
	// predecessor.
	i := sort.Search(len(ids), func(i int) bool {
		return t.Section(ids[i]).Start > offset
	})
	if i == 0 {
		return 0
	}
	if sec := t.Section(ids[i-1]); sec.Contains(offset) {
		return sec.Id
	}
	return 0
}

// Validate checks the structural invariants: sibling intervals are
// pairwise disjoint and ordered by non-decreasing start, and every child
// interval is contained in its parent's. Zero-width synthetic sections
// (the unsectioned root) are exempt from containment checks.
func (t *Tree) Validate() error {
	if err := t.validateSiblings(t.roots); err != nil {
		return err
	}
	for parent, kids := range t.children {
		if err := t.validateSiblings(kids); err != nil {
			return err
		}
		p := t.Section(parent)
		for _, id := range kids {
			c := t.Section(id)
			if c.Start == c.End {
				continue
			}
			if c.Start < p.Start || c.End > p.End {
				return fmt.Errorf("section %q [%d,%d) escapes parent %q [%d,%d)",
					c.Label(), c.Start, c.End, p.Label(), p.Start, p.End)
			}
		}
	}
	return nil
}

func (t *Tree) validateSiblings(ids []core.ID) error {
	for i := 1; i < len(ids); i++ {
		prev, cur := t.Section(ids[i-1]), t.Section(ids[i])
		if cur.Start < prev.Start {
			return fmt.Errorf("siblings out of order: %q before %q", prev.Label(), cur.Label())
		}
		if cur.Start < prev.End && cur.Start != cur.End && prev.Start != prev.End {
			return fmt.Errorf("sibling overlap: %q [%d,%d) and %q [%d,%d)",
				prev.Label(), prev.Start, prev.End, cur.Label(), cur.Start, cur.End)
		}
	}
	return nil
}
