package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestPatchApplyAndInvert(t *testing.T) {
	orig := Block{
		ID:       "b1",
		Type:     BlockTypeParagraph,
		Content:  Paragraph{Text: "hello"},
		Props:    Props{Icon: "star", Extra: map[string]any{"pinned": true}},
		Layout:   "default",
		Width:    320,
		Position: "V",
	}

	patch := Patch{
		Content: Heading{Level: 2, Text: "Title"},
		Props:   &Props{TextColor: "red"},
		Width:   ptr(640.0),
	}

	inv := patch.Invert(orig)

	b := orig.Clone()
	patch.Apply(&b)

	assert.Equal(t, BlockTypeHeading, b.Type)
	assert.Equal(t, Heading{Level: 2, Text: "Title"}, b.Content)
	assert.Equal(t, "red", b.Props.TextColor)
	assert.Equal(t, 640.0, b.Width)
	assert.Equal(t, "default", b.Layout)
	assert.Equal(t, "V", b.Position)

	inv.Apply(&b)
	if diff := cmp.Diff(orig, b); diff != "" {
		t.Fatalf("inverse patch did not restore the block (-want +got):\n%s", diff)
	}
}

func TestPatchTypeChangeConvertsContent(t *testing.T) {
	b := Block{Type: BlockTypeParagraph, Content: Paragraph{Text: "buy milk"}}

	Patch{Type: ptr(BlockTypeTodo)}.Apply(&b)

	assert.Equal(t, BlockTypeTodo, b.Type)
	assert.Equal(t, Todo{Text: "buy milk"}, b.Content)
}

func TestPatchFromMapRejectsStructuralFields(t *testing.T) {
	for _, key := range []string{"parent_block", "parentId", "position"} {
		_, err := PatchFromMap(BlockTypeParagraph, map[string]any{key: "x"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrStructuralPatch), key)
	}
}

func TestPatchFromMap(t *testing.T) {
	p, err := PatchFromMap(BlockTypeParagraph, map[string]any{
		"content": map[string]any{"text": "hi"},
		"props":   map[string]any{"icon": "bolt", "custom": 1.0},
		"layout":  "wide",
		"width":   480.0,
	})
	require.NoError(t, err)

	assert.Equal(t, Paragraph{Text: "hi"}, p.Content)
	require.NotNil(t, p.Props)
	assert.Equal(t, "bolt", p.Props.Icon)
	assert.Equal(t, map[string]any{"custom": 1.0}, p.Props.Extra)
	assert.Equal(t, "wide", *p.Layout)
	assert.Equal(t, 480.0, *p.Width)

	_, err = PatchFromMap(BlockTypeParagraph, map[string]any{"colour": "red"})
	assert.Error(t, err)
}

func TestPatchFields(t *testing.T) {
	fields, err := Patch{Content: Todo{Text: "x", Checked: true}}.Fields()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":    "todo",
		"content": map[string]any{"text": "x", "checked": true},
	}, fields)
}

func TestPatchCloneIsDeep(t *testing.T) {
	p := Patch{Props: &Props{Extra: map[string]any{"k": "v"}}}
	c := p.Clone()
	c.Props.Extra["k"] = "changed"

	assert.Equal(t, "v", p.Props.Extra["k"])
}
