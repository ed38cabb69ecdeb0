package blocktree

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/epoch"
	"github.com/surrealdb/blocktree/pkg/history"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/position"
	"github.com/surrealdb/blocktree/pkg/store"
)

// NewBlock describes a block to create.
type NewBlock struct {
	ParentID string
	// AfterID is the sibling to insert after. Empty inserts before every
	// existing child of ParentID.
	AfterID string
	// Type defaults to the content's type, then to the configured default.
	Type    models.BlockType
	Content models.Content
	Props   models.Props
	Layout  string
	Width   float64
}

// MoveTo is the destination of a move.
type MoveTo struct {
	ParentID string
	AfterID  string
}

// TransferTo is the destination of a subtree transfer.
type TransferTo struct {
	PageID   string
	ParentID string
	AfterID  string
}

func (s *Session) blockType(t models.BlockType, c models.Content) models.BlockType {
	switch {
	case t != "":
		return t
	case c != nil:
		return c.BlockType()
	default:
		return s.cfg.DefaultBlockType
	}
}

// CreateBlock inserts a block under a temporary id, persists it and renames it
// in place to the id the server assigns. A rejected create refetches the page.
func (s *Session) CreateBlock(ctx context.Context, pageID string, nb NewBlock) (Result, error) {
	const op = "create"
	mut := s.begin(op)

	var (
		local              models.Block
		req                client.CreateBlockRequest
		respace, unrespace []history.Op
	)
	err := s.tree.Update(func(m *store.Mutator) error {
		if nb.ParentID != "" {
			if _, err := s.requireBlock(m, op, pageID, nb.ParentID); err != nil {
				return err
			}
			if err := s.requireSaved(op, nb.ParentID); err != nil {
				return err
			}
		}
		positions, redo, undo, err := s.openSlot(m, op, pageID, nb.ParentID, nb.AfterID, "", 1)
		if err != nil {
			return err
		}
		respace, unrespace = redo, undo

		typ := s.blockType(nb.Type, nb.Content)
		content := nb.Content
		if content == nil {
			content = models.NewContent(typ)
		}
		local = models.Block{
			ID:       s.ids.New(),
			PageID:   pageID,
			ParentID: nb.ParentID,
			Kind:     models.DefaultKind,
			Type:     typ,
			Content:  content.Clone(),
			Props:    nb.Props.Clone(),
			Layout:   nb.Layout,
			Width:    nb.Width,
			Position: positions[0],
		}
		if req, err = client.NewCreateBlockRequest(local); err != nil {
			return err
		}
		m.EnsurePage(pageID)
		if err := m.ApplyCreateLocal(pageID, local); err != nil {
			return err
		}
		return applyMoves(m, pageID, respace)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	mut.optimistic()
	mut.result.BlockID = local.ID
	tx := s.history.Push(history.Transaction{
		PageID: pageID,
		Undo:   append([]history.Op{history.Delete(local.ID)}, unrespace...),
		Redo:   append(append([]history.Op(nil), respace...), history.Create(local)),
		Label:  op,
	})

	raw, err := s.client.CreateBlock(ctx, pageID, req)
	if err == nil {
		err = s.commitCreated(pageID, local.ID, raw)
	}
	if err == nil && len(respace) > 0 {
		_, err = s.persistOps(ctx, pageID, respace)
	}
	if err != nil {
		s.history.Discard(tx.ID)
		s.resync(ctx, pageID, op)
		return mut.fail(models.StateResynced, err)
	}

	mut.result.BlockID = raw.ID.String()
	mut.result.IDs = map[string]string{local.ID: raw.ID.String()}
	return mut.end(models.StateCommitted), nil
}

// commitCreated renames a temporary block to its server id and takes the
// server's version and timestamp.
func (s *Session) commitCreated(pageID, tempID string, raw client.RawBlock) error {
	confirmed, err := client.Normalize(raw, pageID)
	if err != nil {
		return err
	}
	return s.tree.Update(func(m *store.Mutator) error {
		if err := s.renameLocked(m, pageID, map[string]string{tempID: confirmed.ID}); err != nil {
			return err
		}
		cur, ok := m.Block(confirmed.ID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrBlockNotFound, confirmed.ID)
		}
		cur.Version = confirmed.Version
		cur.UpdatedAt = confirmed.UpdatedAt
		return m.ApplyCreateLocal(pageID, cur)
	})
}

// MoveBlock re-parents a block and places it after to.AfterID. A move under
// the block itself or one of its descendants is refused.
func (s *Session) MoveBlock(ctx context.Context, pageID, id string, to MoveTo) (Result, error) {
	const op = "move"
	mut := s.begin(op)
	mut.result.BlockID = id

	tx := history.Transaction{PageID: pageID, Label: op}
	err := s.tree.Update(func(m *store.Mutator) error {
		b, err := s.requireBlock(m, op, pageID, id)
		if err != nil {
			return err
		}
		if err := s.requireSaved(op, id, to.ParentID); err != nil {
			return err
		}
		if to.ParentID != "" {
			if _, err := s.requireBlock(m, op, pageID, to.ParentID); err != nil {
				return err
			}
			if m.IsAncestor(id, to.ParentID) {
				return invalid(op, ErrCycle, "%s is inside %s", to.ParentID, id)
			}
		}
		if to.AfterID == id {
			return invalid(op, ErrAnchorNotSibling, "block %s cannot follow itself", id)
		}
		positions, respace, unrespace, err := s.openSlot(m, op, pageID, to.ParentID, to.AfterID, id, 1)
		if err != nil {
			return err
		}

		tx.Undo = append([]history.Op{history.Move(id, b.ParentID, b.Position)}, unrespace...)
		tx.Redo = append([]history.Op{history.Move(id, to.ParentID, positions[0])}, respace...)
		return applyMoves(m, pageID, tx.Redo)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}
	return s.commitStructural(ctx, mut, tx)
}

// Indent makes a block the last child of its previous sibling.
func (s *Session) Indent(ctx context.Context, pageID, id string) (Result, error) {
	const op = "indent"
	mut := s.begin(op)
	mut.result.BlockID = id

	tx := history.Transaction{PageID: pageID, Label: op}
	err := s.tree.Update(func(m *store.Mutator) error {
		b, err := s.requireBlock(m, op, pageID, id)
		if err != nil {
			return err
		}
		siblings, idx, err := m.Siblings(id)
		if err != nil {
			return err
		}
		if idx <= 0 {
			return invalid(op, ErrNoPreviousSibling, "block %s", id)
		}
		parent := siblings[idx-1]
		if err := s.requireSaved(op, id, parent); err != nil {
			return err
		}

		pos := position.Between(lastChildPosition(m, pageID, parent), "")
		tx.Undo = []history.Op{history.Move(id, b.ParentID, b.Position)}
		tx.Redo = []history.Op{history.Move(id, parent, pos)}
		return m.ApplyMoveLocal(pageID, id, store.MoveTarget{ParentID: parent, Position: pos})
	})
	if err != nil {
		return mut.result, validation(op, err)
	}
	return s.commitStructural(ctx, mut, tx)
}

// Outdent moves a block to directly after its parent. The siblings that
// followed it become its trailing children, so the visual order is unchanged.
func (s *Session) Outdent(ctx context.Context, pageID, id string) (Result, error) {
	const op = "outdent"
	mut := s.begin(op)
	mut.result.BlockID = id

	tx := history.Transaction{PageID: pageID, Label: op}
	err := s.tree.Update(func(m *store.Mutator) error {
		b, err := s.requireBlock(m, op, pageID, id)
		if err != nil {
			return err
		}
		if b.IsRoot() {
			return invalid(op, ErrAlreadyRoot, "block %s", id)
		}
		parent, ok := m.Block(b.ParentID)
		if !ok {
			return invalid(op, ErrBlockNotFound, "parent %s", b.ParentID)
		}
		siblings, idx, err := m.Siblings(id)
		if err != nil {
			return err
		}
		followers := siblings[idx+1:]
		if err := s.requireSaved(op, append([]string{id}, followers...)...); err != nil {
			return err
		}

		positions, respace, unrespace, err := s.openSlot(m, op, pageID, parent.ParentID, parent.ID, "", 1)
		if err != nil {
			return err
		}
		followerPos := position.NBetween(lastChildPosition(m, pageID, id), "", len(followers))

		tx.Redo = []history.Op{history.Move(id, parent.ParentID, positions[0])}
		tx.Undo = []history.Op{history.Move(id, parent.ID, b.Position)}
		for i, f := range followers {
			fb, _ := m.Block(f)
			tx.Redo = append(tx.Redo, history.Move(f, id, followerPos[i]))
			tx.Undo = append(tx.Undo, history.Move(f, parent.ID, fb.Position))
		}
		tx.Redo = append(tx.Redo, respace...)
		tx.Undo = append(tx.Undo, unrespace...)
		return applyMoves(m, pageID, tx.Redo)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}
	return s.commitStructural(ctx, mut, tx)
}

// DeleteBlock removes one block. Its children take its place under its former
// parent, in their original order.
func (s *Session) DeleteBlock(ctx context.Context, pageID, id string) (Result, error) {
	const op = "delete"
	mut := s.begin(op)
	mut.result.BlockID = id

	tx := history.Transaction{PageID: pageID, Label: op}
	err := s.tree.Update(func(m *store.Mutator) error {
		b, err := s.requireBlock(m, op, pageID, id)
		if err != nil {
			return err
		}
		children := m.Children(pageID, id)
		if err := s.requireSaved(op, append([]string{id}, children...)...); err != nil {
			return err
		}

		siblings, idx, err := m.Siblings(id)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			var anchor string
			if idx > 0 {
				anchor = siblings[idx-1]
			}
			if _, _, _, err := s.openSlot(m, op, pageID, b.ParentID, anchor, id, len(children)); err != nil {
				return err
			}
		}
		oldPos := positionsOf(m, children)
		oldSibPos := positionsOf(m, siblings)

		if err := m.ApplyDeleteLocal(pageID, id); err != nil {
			return err
		}

		tx.Undo = []history.Op{history.Create(b)}
		for i, c := range children {
			cb, _ := m.Block(c)
			tx.Redo = append(tx.Redo, history.Move(c, b.ParentID, cb.Position))
			tx.Undo = append(tx.Undo, history.Move(c, id, oldPos[i]))
		}
		// siblings respaced to keep the children inside the slot
		for i, sib := range siblings {
			cur, ok := m.Block(sib)
			if !ok || sib == id || cur.Position == oldSibPos[i] {
				continue
			}
			tx.Redo = append(tx.Redo, history.Move(sib, b.ParentID, cur.Position))
			tx.Undo = append(tx.Undo, history.Move(sib, b.ParentID, oldSibPos[i]))
		}
		tx.Redo = append(tx.Redo, history.Delete(id))
		return nil
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	res, err := s.commitStructural(ctx, mut, tx)
	if err == nil {
		s.patches.Forget(id)
	}
	return res, err
}

// UpdateBlock applies a patch to a block's content fields and persists it. If
// the server rejects it, the previous values are restored unless a newer
// update of the same block has been issued since.
func (s *Session) UpdateBlock(ctx context.Context, id string, patch models.Patch) (Result, error) {
	const op = "update"
	mut := s.begin(op)
	mut.result.BlockID = id
	if patch.IsEmpty() {
		return mut.result, invalid(op, ErrEmptyPatch, "block %s", id)
	}

	var (
		pageID  string
		inverse models.Patch
		fields  map[string]any
		token   epoch.Token
	)
	err := s.tree.Update(func(m *store.Mutator) error {
		b, ok := m.Block(id)
		if !ok {
			return invalid(op, ErrBlockNotFound, "block %s", id)
		}
		if err := s.requireSaved(op, id); err != nil {
			return err
		}
		var err error
		if fields, err = patch.Fields(); err != nil {
			return err
		}
		pageID = b.PageID
		inverse = patch.Invert(b)
		token = s.patches.Next(id)
		return m.ApplyUpdateLocal(id, patch)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	mut.optimistic()
	tx := s.history.Push(history.Transaction{
		PageID: pageID,
		Undo:   []history.Op{history.Update(id, inverse)},
		Redo:   []history.Op{history.Update(id, patch)},
		Label:  op,
	})

	if err := s.client.PatchBlock(ctx, id, fields); err != nil {
		s.history.Discard(tx.ID)
		s.rollback(id, token, inverse)
		return mut.fail(models.StateRolledBack, err)
	}
	return mut.end(models.StateCommitted), nil
}

// rollback restores a rejected patch's previous values if token is still the
// block's latest patch token.
func (s *Session) rollback(id string, token epoch.Token, inverse models.Patch) {
	restored := false
	err := s.tree.Update(func(m *store.Mutator) error {
		if !s.patches.IsCurrent(token) {
			return nil
		}
		restored = true
		return m.ApplyUpdateLocal(id, inverse)
	})
	switch {
	case err != nil:
		s.log.Error().Err(err).Str("block", id).Msg("rollback failed")
	case restored:
		s.metrics.Rollback()
		s.log.Warn().Str("block", id).Msg("rolled back rejected update")
	default:
		s.discardStale("patch", id, token)
	}
}

// UpdateFields is UpdateBlock for loosely typed fields keyed as in the PATCH
// body. Parent and position keys are refused; use MoveBlock.
func (s *Session) UpdateFields(ctx context.Context, id string, fields map[string]any) (Result, error) {
	const op = "update"
	b, ok := s.tree.Block(id)
	if !ok {
		return Result{Action: op, BlockID: id}, invalid(op, ErrBlockNotFound, "block %s", id)
	}
	patch, err := models.PatchFromMap(b.Type, fields)
	if err != nil {
		if errors.Is(err, models.ErrStructuralPatch) {
			s.log.Warn().Err(err).Str("block", id).Msg("refused structural fields in update")
		}
		return Result{Action: op, BlockID: id}, invalid(op, err, "block %s", id)
	}
	return s.UpdateBlock(ctx, id, patch)
}

// DuplicateSubtree asks the server to copy a block and its descendants after
// the original, then adds the copies to the page. Nothing is shown before the
// server answers, so a failed request leaves the result Clean.
func (s *Session) DuplicateSubtree(ctx context.Context, pageID, id string) (Result, error) {
	const op = "duplicate"
	mut := s.begin(op)
	mut.result.BlockID = id

	err := s.tree.Update(func(m *store.Mutator) error {
		if _, err := s.requireBlock(m, op, pageID, id); err != nil {
			return err
		}
		return s.requireSaved(op, id)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	raws, err := s.client.DuplicateSubtree(ctx, id)
	if err != nil {
		return mut.abort(err)
	}

	mut.optimistic()
	copies, err := client.NormalizeAll(raws, pageID)
	if err == nil {
		copies = parentsFirst(copies)
		err = s.tree.Update(func(m *store.Mutator) error {
			for _, b := range copies {
				if err := m.ApplyCreateLocal(pageID, b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err != nil {
		s.resync(ctx, pageID, op)
		return mut.fail(models.StateResynced, err)
	}

	tx := history.Transaction{PageID: pageID, Label: op}
	for i := range copies {
		tx.Redo = append(tx.Redo, history.Create(copies[i]))
		tx.Undo = append(tx.Undo, history.Delete(copies[len(copies)-1-i].ID))
	}
	s.history.Push(tx)

	mut.result.BlockID = subtreeRoot(copies)
	return mut.end(models.StateCommitted), nil
}

// TransferSubtree moves a block and its descendants to another page. The
// subtree leaves the source page at once; it appears on the target page when
// the server confirms, if that page is loaded. Transfers are not recorded in
// the undo history.
func (s *Session) TransferSubtree(ctx context.Context, pageID, id string, to TransferTo) (Result, error) {
	const op = "transfer"
	mut := s.begin(op)
	mut.result.BlockID = id
	if to.PageID == "" {
		return mut.result, invalid(op, ErrNoTargetPage, "block %s", id)
	}

	err := s.tree.Update(func(m *store.Mutator) error {
		if _, err := s.requireBlock(m, op, pageID, id); err != nil {
			return err
		}
		if err := s.requireSaved(op, id, to.ParentID, to.AfterID); err != nil {
			return err
		}
		if to.ParentID != "" && m.HasPage(to.PageID) {
			if _, err := s.requireBlock(m, op, to.PageID, to.ParentID); err != nil {
				return err
			}
			if to.PageID == pageID && m.IsAncestor(id, to.ParentID) {
				return invalid(op, ErrCycle, "%s is inside %s", to.ParentID, id)
			}
		}
		_, err := m.RemoveSubtreeLocal(pageID, id)
		return err
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	mut.optimistic()
	raws, err := s.client.TransferSubtree(ctx, pageID, client.TransferRequest{
		RootID:        client.WireID(id),
		ToPageID:      client.WireID(to.PageID),
		ToParentBlock: client.WireID(to.ParentID),
		AfterBlockID:  client.WireID(to.AfterID),
	})
	if err != nil {
		s.resync(ctx, pageID, op)
		if to.PageID != pageID && s.tree.HasPage(to.PageID) {
			s.resync(ctx, to.PageID, op)
		}
		return mut.fail(models.StateResynced, err)
	}

	if s.tree.HasPage(to.PageID) {
		moved, err := client.NormalizeAll(raws, to.PageID)
		if err == nil {
			moved = parentsFirst(moved)
			err = s.tree.Update(func(m *store.Mutator) error {
				for _, b := range moved {
					b.PageID = to.PageID
					if err := m.ApplyCreateLocal(to.PageID, b); err != nil {
						return err
					}
				}
				return nil
			})
		}
		if err != nil {
			s.resync(ctx, to.PageID, op)
			return mut.fail(models.StateResynced, err)
		}
	}
	return mut.end(models.StateCommitted), nil
}

// commitStructural records tx, which has already been applied locally, and
// persists its redo ops. Any failure refetches the page.
func (s *Session) commitStructural(ctx context.Context, mut *mutation, tx history.Transaction) (Result, error) {
	mut.optimistic()
	tx = s.history.Push(tx)

	if _, err := s.persistOps(ctx, tx.PageID, tx.Redo); err != nil {
		s.history.Discard(tx.ID)
		s.resync(ctx, tx.PageID, mut.result.Action)
		return mut.fail(models.StateResynced, err)
	}
	return mut.end(models.StateCommitted), nil
}
