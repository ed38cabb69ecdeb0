package blocktree

import (
	"github.com/surrealdb/blocktree/pkg/history"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

func (s *Session) requireBlock(m *store.Mutator, op, pageID, id string) (models.Block, error) {
	b, ok := m.Block(id)
	if !ok {
		return models.Block{}, invalid(op, ErrBlockNotFound, "block %s", id)
	}
	if b.PageID != pageID {
		return models.Block{}, invalid(op, ErrPageMismatch, "block %s is on page %s", id, b.PageID)
	}
	return b, nil
}

// requireSaved refuses ids the server does not know yet. Empty ids pass.
func (s *Session) requireSaved(op string, ids ...string) error {
	for _, id := range ids {
		if id != "" && s.ids.Is(id) {
			return invalid(op, ErrTemporaryID, "block %s", id)
		}
	}
	return nil
}

// openSlot returns n positions for the gap directly after anchorID among
// parentID's children, or before the first child when anchorID is empty. The
// block skip is left out of the sibling list. Siblings tied with the anchor
// are given new positions after the slot; those moves are returned as redo and
// undo ops and are not applied yet.
func (s *Session) openSlot(m *store.Mutator, op, pageID, parentID, anchorID, skip string, n int) (positions []string, redo, undo []history.Op, err error) {
	positions, respaced, err := m.OpenSlot(pageID, parentID, anchorID, skip, n)
	if err != nil {
		return nil, nil, nil, invalid(op, err, "anchor %s under %q", anchorID, parentID)
	}
	for _, r := range respaced {
		if err := s.requireSaved(op, r.ID); err != nil {
			return nil, nil, nil, err
		}
		redo = append(redo, history.Move(r.ID, parentID, r.To))
		undo = append(undo, history.Move(r.ID, parentID, r.From))
	}
	return positions, redo, undo, nil
}

// applyMoves replays move ops on the local tree.
func applyMoves(m *store.Mutator, pageID string, ops []history.Op) error {
	for _, o := range ops {
		if err := m.ApplyMoveLocal(pageID, o.ID, store.MoveTarget{ParentID: o.ParentID, Position: o.Position}); err != nil {
			return err
		}
	}
	return nil
}

// positionsOf returns the current position of each id, "" when it is missing.
func positionsOf(m *store.Mutator, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		b, _ := m.Block(id)
		out[i] = b.Position
	}
	return out
}

// lastChildPosition returns the position of parentID's last child, or "".
func lastChildPosition(m *store.Mutator, pageID, parentID string) string {
	children := m.Children(pageID, parentID)
	if len(children) == 0 {
		return ""
	}
	b, _ := m.Block(children[len(children)-1])
	return b.Position
}

// parentsFirst orders blocks so every block follows its parent when the parent
// is in the set. Relative order is kept otherwise.
func parentsFirst(blocks []models.Block) []models.Block {
	inSet := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		inSet[b.ID] = true
	}

	out := make([]models.Block, 0, len(blocks))
	placed := make(map[string]bool, len(blocks))
	pending := blocks
	for len(pending) > 0 {
		var rest []models.Block
		for _, b := range pending {
			if b.ParentID == "" || !inSet[b.ParentID] || placed[b.ParentID] {
				out = append(out, b)
				placed[b.ID] = true
			} else {
				rest = append(rest, b)
			}
		}
		if len(rest) == len(pending) {
			// a parent cycle inside the set; keep the remainder as is
			return append(out, rest...)
		}
		pending = rest
	}
	return out
}

// subtreeRoot returns the first block whose parent is outside the set.
func subtreeRoot(blocks []models.Block) string {
	inSet := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		inSet[b.ID] = true
	}
	for _, b := range blocks {
		if !inSet[b.ParentID] {
			return b.ID
		}
	}
	return ""
}
