package history

import (
	"fmt"
	"time"

	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

// OpKind selects which local primitive an Op replays through.
type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpMove
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpMove:
		return "move"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is one reversible step of a transaction.
//
// A create carries a full snapshot in Block. A move carries ID, ParentID and
// Position. An update carries ID and Patch. A delete carries ID.
type Op struct {
	Kind     OpKind
	Block    models.Block
	ID       string
	ParentID string
	Position string
	Patch    models.Patch
}

func Create(b models.Block) Op {
	return Op{Kind: OpCreate, Block: b.Clone(), ID: b.ID}
}

func Move(id, parentID, position string) Op {
	return Op{Kind: OpMove, ID: id, ParentID: parentID, Position: position}
}

func Update(id string, patch models.Patch) Op {
	return Op{Kind: OpUpdate, ID: id, Patch: patch.Clone()}
}

func Delete(id string) Op {
	return Op{Kind: OpDelete, ID: id}
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%s)", o.Kind, o.ID)
}

func (o Op) clone() Op {
	c := o
	c.Block = o.Block.Clone()
	c.Patch = o.Patch.Clone()
	return c
}

// RemapIDs rewrites every block id the op refers to.
func (o *Op) RemapIDs(mapping map[string]string) {
	if to, ok := mapping[o.ID]; ok {
		o.ID = to
	}
	if to, ok := mapping[o.ParentID]; ok {
		o.ParentID = to
	}
	if to, ok := mapping[o.Block.ID]; ok {
		o.Block.ID = to
	}
	if to, ok := mapping[o.Block.ParentID]; ok {
		o.Block.ParentID = to
	}
}

// Transaction is an undo entry: the op-lists that undo and redo one user
// action. Both lists are captured when the action runs and must be ordered so
// that every block is created before it is referenced.
type Transaction struct {
	ID        string
	PageID    string
	Undo      []Op
	Redo      []Op
	Label     string
	CreatedAt time.Time
}

// Clone returns a deep copy of the transaction.
func (tx Transaction) Clone() Transaction {
	c := tx
	c.Undo = cloneOps(tx.Undo)
	c.Redo = cloneOps(tx.Redo)
	return c
}

// RemapIDs rewrites block ids in both op-lists.
func (tx *Transaction) RemapIDs(mapping map[string]string) {
	if len(mapping) == 0 {
		return
	}
	for i := range tx.Undo {
		tx.Undo[i].RemapIDs(mapping)
	}
	for i := range tx.Redo {
		tx.Redo[i].RemapIDs(mapping)
	}
}

func cloneOps(ops []Op) []Op {
	if ops == nil {
		return nil
	}
	out := make([]Op, len(ops))
	for i, op := range ops {
		out[i] = op.clone()
	}
	return out
}

// Applier is the set of local primitives a transaction replays through.
// *store.Mutator implements it.
type Applier interface {
	ApplyCreateLocal(pageID string, b models.Block) error
	ApplyMoveLocal(pageID, id string, to store.MoveTarget) error
	ApplyUpdateLocal(id string, patch models.Patch) error
	ApplyDeleteLocal(pageID, id string) error
}

// ApplyTransactionLocal replays ops in order. An op the applier rejects is
// skipped and the rest still run; the skipped ops are reported in an
// *InconsistentError.
func ApplyTransactionLocal(a Applier, pageID string, ops []Op) error {
	var skipped []SkippedOp
	for i, op := range ops {
		if err := applyOp(a, pageID, op); err != nil {
			skipped = append(skipped, SkippedOp{Index: i, Op: op, Err: err})
		}
	}
	if len(skipped) > 0 {
		return &InconsistentError{PageID: pageID, Skipped: skipped}
	}
	return nil
}

func applyOp(a Applier, pageID string, op Op) error {
	switch op.Kind {
	case OpCreate:
		return a.ApplyCreateLocal(pageID, op.Block)
	case OpMove:
		return a.ApplyMoveLocal(pageID, op.ID, store.MoveTarget{ParentID: op.ParentID, Position: op.Position})
	case OpUpdate:
		return a.ApplyUpdateLocal(op.ID, op.Patch)
	case OpDelete:
		return a.ApplyDeleteLocal(pageID, op.ID)
	default:
		return fmt.Errorf("unknown op kind %d", int(op.Kind))
	}
}
