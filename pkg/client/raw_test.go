package client

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/blocktree/pkg/codec"
	"github.com/surrealdb/blocktree/pkg/models"
)

func TestWireIDDecodesNumbersStringsAndNull(t *testing.T) {
	var raw RawBlock
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 42,
		"page": "p-1",
		"parent_block": null,
		"type": "heading",
		"content": {"text": "Title", "level": 2},
		"position": "V",
		"version": 3,
		"updated_at": "2024-05-01T12:00:00Z",
		"props": {"icon": "📄", "custom": true}
	}`), &raw))

	assert.Equal(t, WireID("42"), raw.ID)
	assert.Equal(t, WireID("p-1"), raw.Page)
	assert.Equal(t, WireID(""), raw.ParentBlock)

	b, err := Normalize(raw, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "42", b.ID)
	assert.Equal(t, "p-1", b.PageID)
	assert.True(t, b.IsRoot())
	assert.Equal(t, models.DefaultKind, b.Kind)
	assert.Equal(t, models.Heading{Level: 2, Text: "Title"}, b.Content)
	assert.Equal(t, "📄", b.Props.Icon)
	assert.Equal(t, true, b.Props.Extra["custom"])
	assert.Equal(t, int64(3), b.Version)
	assert.True(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Equal(b.UpdatedAt))
}

func TestWireIDRejectsObjects(t *testing.T) {
	var id WireID
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &id))
}

func TestNormalizeFillsDefaults(t *testing.T) {
	b, err := Normalize(RawBlock{ID: "7", ParentBlock: "3"}, "page-9")
	require.NoError(t, err)
	assert.Equal(t, "page-9", b.PageID)
	assert.Equal(t, "3", b.ParentID)
	assert.Equal(t, models.BlockTypeParagraph, b.Type)
	assert.Equal(t, models.Paragraph{}, b.Content)

	_, err = Normalize(RawBlock{}, "page-9")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestToRawRoundTripsThroughCodecs(t *testing.T) {
	in := models.Block{
		ID:       "b1",
		PageID:   "p1",
		ParentID: "b0",
		Kind:     models.DefaultKind,
		Type:     models.BlockTypeTodo,
		Content:  models.Todo{Text: "ship", Checked: true},
		Props:    models.Props{TextColor: "red"},
		Position: "k",
		Version:  1,
	}
	raw, err := ToRaw(in)
	require.NoError(t, err)

	for _, c := range []codec.Codec{codec.JSON(), codec.CBOR()} {
		t.Run(c.Name, func(t *testing.T) {
			data, err := c.Marshal(raw)
			require.NoError(t, err)
			var back RawBlock
			require.NoError(t, c.Unmarshal(data, &back))

			out, err := Normalize(back, "")
			require.NoError(t, err)
			assert.Equal(t, in.ID, out.ID)
			assert.Equal(t, in.ParentID, out.ParentID)
			assert.Equal(t, in.Content, out.Content)
			assert.Equal(t, in.Props.TextColor, out.Props.TextColor)
			assert.Equal(t, in.Position, out.Position)
		})
	}
}

func TestRootParentEncodesAsNull(t *testing.T) {
	req, err := NewCreateBlockRequest(models.Block{ID: "tmp-1", Type: models.BlockTypeParagraph, Content: models.Paragraph{Text: "x"}})
	require.NoError(t, err)
	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"parent_block":null`)

	fields := MoveFields("", "V")
	assert.Nil(t, fields["parent_block"])
	assert.Equal(t, "p", MoveFields("p", "V")["parent_block"])
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", errorMessage([]byte(`{"error":"nope"}`)))
	assert.Equal(t, "deep", errorMessage([]byte(`{"error":{"message":"deep"}}`)))
	assert.Equal(t, "msg", errorMessage([]byte(`{"message":"msg"}`)))
	assert.Equal(t, "plain text", errorMessage([]byte(`plain text`)))
}
