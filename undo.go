package blocktree

import (
	"context"
	"fmt"

	"github.com/surrealdb/blocktree/pkg/client"
	"github.com/surrealdb/blocktree/pkg/history"
	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

// DomainBlocks names the block-tree undo domain.
const DomainBlocks = "blocks"

var _ history.Applier = (*store.Mutator)(nil)

// Undo reverts the most recent action. The undo ops are replayed locally and
// then persisted one by one. If an op no longer fits the tree the entry is
// dropped, the page is refetched and the error matches
// history.ErrInconsistentHistory. A persistence failure also refetches the page.
func (s *Session) Undo(ctx context.Context) error {
	return s.replay(ctx, true)
}

// Redo reapplies the most recently undone action.
func (s *Session) Redo(ctx context.Context) error {
	return s.replay(ctx, false)
}

// Domain returns the block-tree undo domain, for use in a history.Chain behind
// more local domains such as an editor's text history.
func (s *Session) Domain() history.Domain {
	return history.FuncDomain{
		Label:     DomainBlocks,
		CanUndoFn: s.history.CanUndo,
		CanRedoFn: s.history.CanRedo,
		UndoFn:    s.Undo,
		RedoFn:    s.Redo,
	}
}

func (s *Session) replay(ctx context.Context, undo bool) error {
	op := "redo"
	tx, ok := s.history.PopRedo()
	if undo {
		op = "undo"
		tx, ok = s.history.PopUndo()
	}
	if !ok {
		if undo {
			return history.ErrNothingToUndo
		}
		return history.ErrNothingToRedo
	}

	ops := tx.Redo
	if undo {
		ops = tx.Undo
	}

	var replayErr error
	if err := s.tree.Update(func(m *store.Mutator) error {
		replayErr = history.ApplyTransactionLocal(m, tx.PageID, ops)
		return nil
	}); err != nil {
		return err
	}
	if replayErr != nil {
		s.metrics.Inconsistent()
		s.log.Warn().Err(replayErr).Str("op", op).Str("entry", tx.ID).Msg("dropping inconsistent history entry")
		s.resync(ctx, tx.PageID, "history_inconsistent")
		return replayErr
	}

	mapping, err := s.persistOps(ctx, tx.PageID, ops)
	tx.RemapIDs(mapping)
	if err != nil {
		s.metrics.Mutation(op, models.StateResynced.String())
		s.resync(ctx, tx.PageID, op)
		return &NetworkError{Op: op, Err: err}
	}

	if undo {
		s.history.Undone(tx)
	} else {
		s.history.Redone(tx)
	}
	s.metrics.Mutation(op, models.StateCommitted.String())
	s.log.Debug().Str("op", op).Str("entry", tx.ID).Str("label", tx.Label).Msg("history replayed")
	return nil
}

// persistOps sends ops to the server in order. A create gets a new server id;
// the block is renamed locally and later ops are rewritten to it. The renames
// made so far are returned even on error.
func (s *Session) persistOps(ctx context.Context, pageID string, ops []history.Op) (map[string]string, error) {
	renamed := map[string]string{}
	for i := range ops {
		ops[i].RemapIDs(renamed)
		o := ops[i]

		var err error
		switch o.Kind {
		case history.OpCreate:
			var to string
			if to, err = s.persistCreate(ctx, pageID, o.Block); err == nil && to != o.Block.ID {
				renamed[o.Block.ID] = to
				ops[i].RemapIDs(renamed)
			}
		case history.OpMove:
			err = s.client.PatchBlock(ctx, o.ID, client.MoveFields(o.ParentID, o.Position))
		case history.OpUpdate:
			var fields map[string]any
			if fields, err = o.Patch.Fields(); err == nil {
				err = s.client.PatchBlock(ctx, o.ID, fields)
			}
		case history.OpDelete:
			if err = s.client.DeleteBlock(ctx, o.ID); err == nil {
				s.patches.Forget(o.ID)
			}
		default:
			err = fmt.Errorf("unknown op kind %d", int(o.Kind))
		}
		if err != nil {
			return renamed, fmt.Errorf("persist %s: %w", o, err)
		}
	}
	return renamed, nil
}

// persistCreate posts the current local copy of a recreated block and renames
// it to the id the server assigns.
func (s *Session) persistCreate(ctx context.Context, pageID string, snapshot models.Block) (string, error) {
	b, ok := s.tree.Block(snapshot.ID)
	if !ok {
		b = snapshot
	}
	req, err := client.NewCreateBlockRequest(b)
	if err != nil {
		return "", err
	}
	raw, err := s.client.CreateBlock(ctx, pageID, req)
	if err != nil {
		return "", err
	}
	if raw.ID == "" {
		return "", fmt.Errorf("%w: create returned no id", client.ErrInvalidResponse)
	}
	if err := s.commitCreated(pageID, b.ID, raw); err != nil {
		return "", err
	}
	return raw.ID.String(), nil
}
