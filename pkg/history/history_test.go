package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/pkg/models"
	"github.com/surrealdb/blocktree/pkg/store"
)

const page = "page-1"

func block(id, parent, pos, text string) models.Block {
	return models.Block{
		ID:       id,
		PageID:   page,
		ParentID: parent,
		Kind:     models.DefaultKind,
		Type:     models.BlockTypeParagraph,
		Content:  models.Paragraph{Text: text},
		Position: pos,
	}
}

type shape struct {
	ParentID string
	Position string
	Type     models.BlockType
	Content  models.Content
	Props    models.Props
}

func shapes(tree *store.Tree) map[string]shape {
	out := map[string]shape{}
	tree.Walk(page, func(b models.Block, _ int) bool {
		out[b.ID] = shape{b.ParentID, b.Position, b.Type, b.Content, b.Props}
		return true
	})
	return out
}

func replay(t *testing.T, tree *store.Tree, ops []Op) error {
	t.Helper()
	return tree.Update(func(m *store.Mutator) error {
		return ApplyTransactionLocal(m, page, ops)
	})
}

func TestRedoThenUndoRestores(t *testing.T) {
	tree := store.New()
	require.NoError(t, tree.Update(func(m *store.Mutator) error {
		for _, b := range []models.Block{
			block("a", "", "V", "a"),
			block("b", "", "k", "b"),
			block("b1", "b", "V", "b1"),
			block("b2", "b", "k", "b2"),
		} {
			if err := m.ApplyCreateLocal(page, b); err != nil {
				return err
			}
		}
		return nil
	}))
	before := shapes(tree)

	bSnap, _ := tree.Block("b")
	heading := models.BlockTypeHeading
	patch := models.Patch{Type: &heading, Content: models.Heading{Level: 2, Text: "A!"}}
	aSnap, _ := tree.Block("a")

	tx := Transaction{
		PageID: page,
		Redo: []Op{
			Update("a", patch),
			Create(block("c", "a", "V", "new")),
			Move("b2", "a", "k"),
			Delete("b"),
		},
		Undo: []Op{
			Create(bSnap),
			Move("b1", "b", "V"),
			Move("b2", "b", "k"),
			Delete("c"),
			Update("a", patch.Invert(aSnap)),
		},
	}

	require.NoError(t, replay(t, tree, tx.Redo))
	_, ok := tree.Block("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"c", "b2"}, tree.Children(page, "a"))

	require.NoError(t, replay(t, tree, tx.Undo))
	if diff := cmp.Diff(before, shapes(tree)); diff != "" {
		t.Errorf("tree not restored (-want +got):\n%s", diff)
	}
}

func TestApplyTransactionSkipsBadOps(t *testing.T) {
	tree := store.New()
	require.NoError(t, tree.Update(func(m *store.Mutator) error {
		return m.ApplyCreateLocal(page, block("a", "", "V", "a"))
	}))

	err := replay(t, tree, []Op{
		Move("missing", "", "V"),
		Create(block("b", "", "k", "b")),
		Move("a", "a", "V"),
		{Kind: OpKind(99), ID: "a"},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentHistory))

	var inconsistent *InconsistentError
	require.ErrorAs(t, err, &inconsistent)
	require.Len(t, inconsistent.Skipped, 3)
	assert.Equal(t, 0, inconsistent.Skipped[0].Index)
	assert.ErrorIs(t, inconsistent.Skipped[0].Err, store.ErrBlockNotFound)
	assert.ErrorIs(t, inconsistent.Skipped[1].Err, store.ErrCycle)
	assert.Contains(t, err.Error(), "move(missing)")

	assert.Equal(t, []string{"a", "b"}, tree.Children(page, ""))
}

func TestManagerPushClearsRedo(t *testing.T) {
	m := NewManager(0)
	first := m.Push(Transaction{PageID: page, Label: "one"})
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	tx, ok := m.PopUndo()
	require.True(t, ok)
	m.Undone(tx)
	assert.True(t, m.CanRedo())

	m.Push(Transaction{PageID: page, Label: "two"})
	assert.False(t, m.CanRedo())
	undo, redo := m.Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 0, redo)
}

func TestManagerRedoKeepsRemainingRedo(t *testing.T) {
	m := NewManager(0)
	m.Push(Transaction{Label: "one"})
	m.Push(Transaction{Label: "two"})

	for i := 0; i < 2; i++ {
		tx, ok := m.PopUndo()
		require.True(t, ok)
		m.Undone(tx)
	}
	tx, ok := m.PopRedo()
	require.True(t, ok)
	assert.Equal(t, "one", tx.Label)
	m.Redone(tx)

	undo, redo := m.Depth()
	assert.Equal(t, 1, undo)
	assert.Equal(t, 1, redo)

	_, ok = m.PopRedo()
	assert.True(t, ok)
	_, ok = m.PopRedo()
	assert.False(t, ok)
}

func TestManagerMaxDepth(t *testing.T) {
	m := NewManager(3)
	for _, label := range []string{"1", "2", "3", "4", "5"} {
		m.Push(Transaction{Label: label})
	}

	var labels []string
	for {
		tx, ok := m.PopUndo()
		if !ok {
			break
		}
		labels = append(labels, tx.Label)
	}
	assert.Equal(t, []string{"5", "4", "3"}, labels)
}

func TestManagerDiscardAndRemap(t *testing.T) {
	m := NewManager(0)
	kept := m.Push(Transaction{
		CreatedAt: time.Unix(10, 0),
		Undo:      []Op{Delete("tmp-1")},
		Redo:      []Op{Create(block("tmp-1", "tmp-0", "V", "x")), Move("other", "tmp-1", "V")},
	})
	dropped := m.Push(Transaction{Label: "drop"})

	assert.True(t, m.Discard(dropped.ID))
	assert.False(t, m.Discard(dropped.ID))

	m.RemapIDs(map[string]string{"tmp-1": "s1", "tmp-0": "s0"})

	tx, ok := m.PopUndo()
	require.True(t, ok)
	assert.Equal(t, kept.ID, tx.ID)
	assert.Equal(t, time.Unix(10, 0), tx.CreatedAt)
	assert.Equal(t, "s1", tx.Undo[0].ID)
	assert.Equal(t, "s1", tx.Redo[0].Block.ID)
	assert.Equal(t, "s0", tx.Redo[0].Block.ParentID)
	assert.Equal(t, "s1", tx.Redo[1].ParentID)
	assert.Equal(t, "other", tx.Redo[1].ID)
}

func TestPushStoresACopy(t *testing.T) {
	m := NewManager(0)
	ops := []Op{Move("a", "", "V")}
	m.Push(Transaction{Redo: ops})
	ops[0].ID = "changed"

	tx, _ := m.PopUndo()
	assert.Equal(t, "a", tx.Redo[0].ID)
}

func TestChainPrecedence(t *testing.T) {
	var calls []string
	domain := func(name string, can bool) Domain {
		return FuncDomain{
			Label:     name,
			CanUndoFn: func() bool { return can },
			CanRedoFn: func() bool { return can },
			UndoFn: func(context.Context) error {
				calls = append(calls, "undo:"+name)
				return nil
			},
			RedoFn: func(context.Context) error {
				calls = append(calls, "redo:"+name)
				return nil
			},
		}
	}

	chain := Chain{domain("editor", false), nil, domain("blocks", true), domain("pages", true)}
	name, err := chain.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "blocks", name)

	name, err = chain.Redo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "blocks", name)
	assert.Equal(t, []string{"undo:blocks", "redo:blocks"}, calls)

	_, err = Chain{domain("editor", false)}.Undo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToUndo)
	_, err = Chain{}.Redo(context.Background())
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestActionDomain(t *testing.T) {
	ctx := context.Background()
	title := "Inbox"
	rename := func(to string) func(context.Context) error {
		return func(context.Context) error {
			title = to
			return nil
		}
	}

	pages := NewActionDomain(DomainPages, 2)
	assert.Equal(t, DomainPages, pages.Name())
	assert.False(t, pages.CanUndo())
	assert.ErrorIs(t, pages.Undo(ctx), ErrNothingToUndo)

	for _, to := range []string{"Work", "Home", "Later"} {
		from := title
		title = to
		pages.Record(Action{Label: "rename", Undo: rename(from), Redo: rename(to)})
	}

	require.NoError(t, pages.Undo(ctx))
	assert.Equal(t, "Home", title)
	require.NoError(t, pages.Undo(ctx))
	assert.Equal(t, "Work", title)
	assert.False(t, pages.CanUndo(), "depth is bounded")

	require.True(t, pages.CanRedo())
	require.NoError(t, pages.Redo(ctx))
	assert.Equal(t, "Home", title)

	pages.Record(Action{Label: "rename"})
	assert.False(t, pages.CanRedo())

	boom := errors.New("boom")
	pages.Record(Action{Label: "broken", Undo: func(context.Context) error { return boom }})
	assert.ErrorIs(t, pages.Undo(ctx), boom)
	assert.False(t, pages.CanRedo(), "a failed action is dropped")
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "delete", OpDelete.String())
	assert.Equal(t, "OpKind(7)", OpKind(7).String())
}
