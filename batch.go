package blocktree

import (
	"context"
	"fmt"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/history"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/position"
	"github.com/surrealdb/blocktree/pkg/store"
)

// BatchItem is one block of a batch insert. Children are created under it.
type BatchItem struct {
	Type     models.BlockType
	Content  models.Content
	Props    models.Props
	Children []BatchItem
}

// BatchAddBlocksAfter inserts a forest of blocks after afterID under parentID
// in one request. Every block is shown at once under a temporary id and renamed
// in place when the server answers. If the server rejects the batch the page is
// refetched and no temporary block survives.
func (s *Session) BatchAddBlocksAfter(ctx context.Context, pageID, afterID string, items []BatchItem, parentID string) (Result, error) {
	const op = "batch"
	mut := s.begin(op)
	if len(items) == 0 {
		return mut.result, invalid(op, ErrEmptyBatch, "page %s", pageID)
	}

	var (
		created            []models.Block
		wire               []client.BatchBlock
		top                []string
		respace, unrespace []history.Op
	)
	err := s.tree.Update(func(m *store.Mutator) error {
		if parentID != "" {
			if _, err := s.requireBlock(m, op, pageID, parentID); err != nil {
				return err
			}
		}
		if err := s.requireSaved(op, parentID, afterID); err != nil {
			return err
		}
		positions, redo, undo, err := s.openSlot(m, op, pageID, parentID, afterID, "", len(items))
		if err != nil {
			return err
		}
		respace, unrespace = redo, undo

		wire, top, err = s.buildForest(pageID, parentID, positions, items, &created)
		if err != nil {
			return err
		}
		m.EnsurePage(pageID)
		for _, b := range created {
			if err := m.ApplyCreateLocal(pageID, b); err != nil {
				return err
			}
		}
		return applyMoves(m, pageID, respace)
	})
	if err != nil {
		return mut.result, validation(op, err)
	}

	mut.optimistic()
	mut.result.BlockID = top[0]
	tx := history.Transaction{PageID: pageID, Label: op}
	tx.Redo = append(tx.Redo, respace...)
	for i := range created {
		tx.Redo = append(tx.Redo, history.Create(created[i]))
		tx.Undo = append(tx.Undo, history.Delete(created[len(created)-1-i].ID))
	}
	tx.Undo = append(tx.Undo, unrespace...)
	tx = s.history.Push(tx)

	resp, err := s.client.BatchCreate(ctx, pageID, client.BatchRequest{
		ParentBlock:  client.WireID(parentID),
		AfterBlockID: client.WireID(afterID),
		Blocks:       wire,
	})
	var mapping map[string]string
	if err == nil {
		mapping, err = batchMapping(resp, created)
	}
	if err == nil {
		err = s.ReconcileTempIDs(pageID, mapping)
	}
	if err == nil && len(respace) > 0 {
		_, err = s.persistOps(ctx, pageID, respace)
	}
	if err != nil {
		s.history.Discard(tx.ID)
		s.resync(ctx, pageID, op)
		return mut.fail(models.StateResynced, err)
	}

	mut.result.IDs = mapping
	for _, id := range top {
		mut.result.TopLevelIDs = append(mut.result.TopLevelIDs, mapping[id])
	}
	mut.result.BlockID = mut.result.TopLevelIDs[0]
	return mut.end(models.StateCommitted), nil
}

// buildForest assigns temporary ids to items and their descendants. The items
// take positions in order; every child list gets its own from one NBetween
// call. Blocks are appended to out parents first.
func (s *Session) buildForest(pageID, parentID string, positions []string, items []BatchItem, out *[]models.Block) ([]client.BatchBlock, []string, error) {
	wire := make([]client.BatchBlock, 0, len(items))
	ids := make([]string, 0, len(items))

	for i, it := range items {
		typ := s.blockType(it.Type, it.Content)
		content := it.Content
		if content == nil {
			content = models.NewContent(typ)
		}
		b := models.Block{
			ID:       s.ids.New(),
			PageID:   pageID,
			ParentID: parentID,
			Kind:     models.DefaultKind,
			Type:     typ,
			Content:  content.Clone(),
			Props:    it.Props.Clone(),
			Position: positions[i],
		}
		raw, err := client.ToRaw(b)
		if err != nil {
			return nil, nil, err
		}
		*out = append(*out, b)

		children, _, err := s.buildForest(pageID, b.ID, position.NBetween("", "", len(it.Children)), it.Children, out)
		if err != nil {
			return nil, nil, err
		}
		wire = append(wire, client.BatchBlock{
			TempID:   b.ID,
			Kind:     b.Kind,
			Type:     string(b.Type),
			Content:  raw.Content,
			Props:    raw.Props,
			Position: b.Position,
			Children: children,
		})
		ids = append(ids, b.ID)
	}
	return wire, ids, nil
}

// batchMapping checks that the server named an id for every temporary block.
func batchMapping(resp client.BatchResponse, created []models.Block) (map[string]string, error) {
	mapping := make(map[string]string, len(created))
	for _, b := range created {
		id := resp.Map[b.ID].String()
		if id == "" {
			return nil, fmt.Errorf("%w: no server id for %s", client.ErrInvalidResponse, b.ID)
		}
		mapping[b.ID] = id
	}
	return mapping, nil
}

// ReconcileTempIDs renames temporary blocks to their server ids in place. The
// block records, every parent reference, the children index, the undo history
// and the per-block patch tokens all move to the new ids together.
func (s *Session) ReconcileTempIDs(pageID string, mapping map[string]string) error {
	return s.tree.Update(func(m *store.Mutator) error {
		return s.renameLocked(m, pageID, mapping)
	})
}

func (s *Session) renameLocked(m *store.Mutator, pageID string, mapping map[string]string) error {
	if err := m.RenameIDs(pageID, mapping); err != nil {
		return err
	}
	s.history.RemapIDs(mapping)
	for from, to := range mapping {
		s.patches.Rename(from, to)
	}
	return nil
}
