package store

import (
	"fmt"
	"sort"

	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/position"
)

// Mutator is the write handle passed to [Tree.Update]. Every method validates
// before it writes, so a returned error means the indices were not touched.
type Mutator struct {
	ix *index
}

// MoveTarget is the new location of a block.
type MoveTarget struct {
	ParentID string
	Position string
}

// Respace is a sibling whose position has to change to open a slot.
type Respace struct {
	ID   string
	From string
	To   string
}

// Block returns a copy of the block with the given id.
func (m *Mutator) Block(id string) (models.Block, bool) {
	return m.ix.snapshot(id)
}

// Children returns the ordered child ids of parentID within a page.
func (m *Mutator) Children(pageID, parentID string) []string {
	return m.ix.childIDs(pageID, ParentKeyOf(parentID))
}

// HasPage reports whether the page has indices.
func (m *Mutator) HasPage(pageID string) bool {
	_, ok := m.ix.blocksByPage[pageID]
	return ok
}

// Siblings returns the ordered ids sharing id's parent and id's index among them.
func (m *Mutator) Siblings(id string) ([]string, int, error) {
	b, ok := m.ix.blocksByID[id]
	if !ok {
		return nil, -1, ErrBlockNotFound
	}
	ids := m.ix.childIDs(b.PageID, ParentKeyOf(b.ParentID))
	for i, sib := range ids {
		if sib == id {
			return ids, i, nil
		}
	}
	return ids, -1, ErrBlockNotFound
}

// IsAncestor reports whether ancestorID is id or one of id's ancestors.
func (m *Mutator) IsAncestor(ancestorID, id string) bool {
	return m.ix.isAncestor(ancestorID, id)
}

// Subtree returns copies of rootID and all its descendants, parents before
// children and siblings in order.
func (m *Mutator) Subtree(rootID string) []models.Block {
	root, ok := m.ix.blocksByID[rootID]
	if !ok {
		return nil
	}
	out := []models.Block{root.Clone()}
	m.ix.walk(root.PageID, rootID, 1, func(b models.Block, _ int) bool {
		out = append(out, b)
		return true
	})
	return out
}

// EnsurePage creates empty indices for a page if it has none.
func (m *Mutator) EnsurePage(pageID string) {
	m.ix.ensurePageMap(pageID)
}

// ApplyCreateLocal inserts a block into all three indices. Re-applying a block
// whose id is already present overwrites the record and never duplicates the
// sibling entry.
func (m *Mutator) ApplyCreateLocal(pageID string, b models.Block) error {
	if b.ID == "" || b.ID == RootKey {
		return fmt.Errorf("%w: %q", ErrInvalidID, b.ID)
	}
	if b.PageID == "" {
		b.PageID = pageID
	}
	if b.PageID != pageID {
		return ErrPageMismatch
	}
	if b.ParentID == b.ID {
		return ErrCycle
	}
	if b.ParentID != "" {
		if _, err := m.ix.blockInPage(pageID, b.ParentID); err != nil {
			return fmt.Errorf("%w: %s", ErrParentNotFound, b.ParentID)
		}
	}

	existing, exists := m.ix.blocksByID[b.ID]
	if exists {
		if existing.PageID != pageID {
			return ErrPageMismatch
		}
		if b.ParentID != "" && m.ix.isAncestor(b.ID, b.ParentID) {
			return ErrCycle
		}
		oldKey := ParentKeyOf(existing.ParentID)
		*existing = b.Clone()
		if oldKey != ParentKeyOf(b.ParentID) {
			m.ix.removeChild(pageID, oldKey, b.ID)
		}
		m.ix.insertChild(pageID, ParentKeyOf(b.ParentID), b.ID)
		return nil
	}

	m.ix.ensurePageMap(pageID)
	rec := b.Clone()
	m.ix.blocksByID[b.ID] = &rec
	m.ix.blocksByPage[pageID][b.ID] = &rec
	m.ix.insertChild(pageID, ParentKeyOf(b.ParentID), b.ID)
	return nil
}

// ApplyMoveLocal re-parents and re-positions a block. A move that would make the
// block its own ancestor is rejected with ErrCycle.
func (m *Mutator) ApplyMoveLocal(pageID, id string, to MoveTarget) error {
	b, err := m.ix.blockInPage(pageID, id)
	if err != nil {
		return err
	}
	if to.ParentID != "" {
		if _, err := m.ix.blockInPage(pageID, to.ParentID); err != nil {
			return fmt.Errorf("%w: %s", ErrParentNotFound, to.ParentID)
		}
		if m.ix.isAncestor(id, to.ParentID) {
			return ErrCycle
		}
	}

	m.ix.removeChild(pageID, ParentKeyOf(b.ParentID), id)
	b.ParentID = to.ParentID
	b.Position = to.Position
	m.ix.insertChild(pageID, ParentKeyOf(to.ParentID), id)
	return nil
}

// ApplyDeleteLocal removes exactly one block. Its children take its slot in
// their original order, are re-parented to its parent and get positions between
// its former neighbours. Siblings tied with the previous neighbour are moved
// after the children, see OpenSlot.
func (m *Mutator) ApplyDeleteLocal(pageID, id string) error {
	b, err := m.ix.blockInPage(pageID, id)
	if err != nil {
		return err
	}

	key := ParentKeyOf(b.ParentID)
	siblings := m.ix.childrenByParentID[pageID][key]
	idx := -1
	for i, sib := range siblings {
		if sib == id {
			idx = i
			break
		}
	}

	children := m.ix.childIDs(pageID, id)
	if len(children) > 0 {
		var anchor string
		if idx > 0 {
			anchor = siblings[idx-1]
		}
		positions, respaced, err := m.OpenSlot(pageID, b.ParentID, anchor, id, len(children))
		if err != nil {
			return err
		}
		for i, childID := range children {
			child := m.ix.blocksByID[childID]
			child.ParentID = b.ParentID
			child.Position = positions[i]
		}
		for _, r := range respaced {
			m.ix.blocksByID[r.ID].Position = r.To
		}
	}

	spliced := make([]string, 0, len(siblings)+len(children))
	if idx >= 0 {
		spliced = append(spliced, siblings[:idx]...)
		spliced = append(spliced, children...)
		spliced = append(spliced, siblings[idx+1:]...)
	} else {
		spliced = append(append(spliced, siblings...), children...)
	}
	m.ix.sortSiblingsByPosition(spliced)
	if len(spliced) == 0 && key != RootKey {
		delete(m.ix.childrenByParentID[pageID], key)
	} else {
		m.ix.childrenByParentID[pageID][key] = spliced
	}

	delete(m.ix.childrenByParentID[pageID], id)
	delete(m.ix.blocksByPage[pageID], id)
	delete(m.ix.blocksByID, id)
	return nil
}

// OpenSlot returns n increasing positions for the gap directly after anchorID
// among parentID's children, or before the first child when anchorID is empty.
// The block skip is left out of the sibling list.
//
// Siblings after the anchor that share its position would sort after any key
// above it, so they get fresh positions following the n new ones. Those are
// returned as respaced and are not written; the caller applies and persists
// them.
func (m *Mutator) OpenSlot(pageID, parentID, anchorID, skip string, n int) ([]string, []Respace, error) {
	all := m.ix.childIDs(pageID, ParentKeyOf(parentID))
	siblings := all[:0]
	for _, id := range all {
		if id != skip {
			siblings = append(siblings, id)
		}
	}

	idx := -1
	var prev string
	if anchorID != "" {
		for i, id := range siblings {
			if id == anchorID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, ErrNotSibling
		}
		prev = m.ix.blocksByID[anchorID].Position
	}

	rest := siblings[idx+1:]
	tied := 0
	for prev != "" && tied < len(rest) && m.ix.blocksByID[rest[tied]].Position <= prev {
		tied++
	}
	var next string
	if tied < len(rest) {
		next = m.ix.blocksByID[rest[tied]].Position
	}

	keys := position.NBetween(prev, next, n+tied)
	respaced := make([]Respace, 0, tied)
	for i, id := range rest[:tied] {
		respaced = append(respaced, Respace{ID: id, From: m.ix.blocksByID[id].Position, To: keys[n+i]})
	}
	return keys[:n], respaced, nil
}

// ApplyUpdateLocal merges a patch into a block's non-structural fields.
func (m *Mutator) ApplyUpdateLocal(id string, patch models.Patch) error {
	b, ok := m.ix.blocksByID[id]
	if !ok {
		return ErrBlockNotFound
	}
	patch.Apply(b)
	return nil
}

// ApplyUpdateFieldsLocal is ApplyUpdateLocal for loosely typed fields. Parent
// and position keys are rejected with models.ErrStructuralPatch.
func (m *Mutator) ApplyUpdateFieldsLocal(id string, fields map[string]any) (models.Patch, error) {
	b, ok := m.ix.blocksByID[id]
	if !ok {
		return models.Patch{}, ErrBlockNotFound
	}
	patch, err := models.PatchFromMap(b.Type, fields)
	if err != nil {
		return models.Patch{}, err
	}
	patch.Apply(b)
	return patch, nil
}

// RemoveSubtreeLocal removes rootID and every descendant, returning what was
// removed parents first.
func (m *Mutator) RemoveSubtreeLocal(pageID, rootID string) ([]models.Block, error) {
	root, err := m.ix.blockInPage(pageID, rootID)
	if err != nil {
		return nil, err
	}

	removed := m.Subtree(rootID)
	m.ix.removeChild(pageID, ParentKeyOf(root.ParentID), rootID)
	for _, b := range removed {
		delete(m.ix.childrenByParentID[pageID], b.ID)
		delete(m.ix.blocksByPage[pageID], b.ID)
		delete(m.ix.blocksByID, b.ID)
	}
	return removed, nil
}

// ReplacePage swaps a page's indices for blocks wholesale. Blocks whose parent
// is missing from the set, or that sit on a parent cycle, are attached to the
// root so the page stays a tree; their ids are returned.
func (m *Mutator) ReplacePage(pageID string, blocks []models.Block) []string {
	m.DropPage(pageID)
	m.ix.ensurePageMap(pageID)

	for i := range blocks {
		rec := blocks[i].Clone()
		rec.PageID = pageID
		if other, ok := m.ix.blocksByID[rec.ID]; ok && other.PageID != pageID {
			m.ix.removeChild(other.PageID, ParentKeyOf(other.ParentID), rec.ID)
			delete(m.ix.blocksByPage[other.PageID], rec.ID)
		}
		m.ix.blocksByID[rec.ID] = &rec
		m.ix.blocksByPage[pageID][rec.ID] = &rec
	}

	var repaired []string
	for _, b := range sortedByID(m.ix.blocksByPage[pageID]) {
		if b.ParentID == "" {
			continue
		}
		if _, ok := m.ix.blocksByPage[pageID][b.ParentID]; !ok || m.ix.isAncestor(b.ID, b.ParentID) {
			b.ParentID = ""
			repaired = append(repaired, b.ID)
		}
	}

	for _, b := range m.ix.blocksByPage[pageID] {
		key := ParentKeyOf(b.ParentID)
		m.ix.childrenByParentID[pageID][key] = append(m.ix.childrenByParentID[pageID][key], b.ID)
	}
	for _, ids := range m.ix.childrenByParentID[pageID] {
		m.ix.sortSiblingsByPosition(ids)
	}
	return repaired
}

// DropPage removes every index entry of a page.
func (m *Mutator) DropPage(pageID string) {
	for id := range m.ix.blocksByPage[pageID] {
		delete(m.ix.blocksByID, id)
	}
	delete(m.ix.blocksByPage, pageID)
	delete(m.ix.childrenByParentID, pageID)
}

func sortedByID(blocks map[string]*models.Block) []*models.Block {
	out := make([]*models.Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
