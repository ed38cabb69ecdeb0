package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeContent(t *testing.T) {
	c, err := DecodeContent(BlockTypeHeading, map[string]any{"text": "Intro", "level": 3.0})
	require.NoError(t, err)
	assert.Equal(t, Heading{Level: 3, Text: "Intro"}, c)

	c, err = DecodeContent(BlockTypeHeading, nil)
	require.NoError(t, err)
	assert.Equal(t, Heading{Level: 1}, c)

	c, err = DecodeContent("callout", map[string]any{"text": "note", "emoji": "!"})
	require.NoError(t, err)
	assert.Equal(t, Raw{Type: "callout", Fields: map[string]any{"text": "note", "emoji": "!"}}, c)
	assert.Equal(t, "note", TextOf(c))
}

func TestDecodeContentRejectsMistypedFields(t *testing.T) {
	_, err := DecodeContent(BlockTypeTodo, map[string]any{"checked": "yes"})
	assert.Error(t, err)
}

func TestEncodeContent(t *testing.T) {
	fields, err := EncodeContent(Code{Language: "go", Code: "package main"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"language": "go", "code": "package main"}, fields)

	fields, err = EncodeContent(nil)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestConvertContentKeepsText(t *testing.T) {
	assert.Equal(t, Code{Code: "x := 1"}, ConvertContent(Paragraph{Text: "x := 1"}, BlockTypeCode))
	assert.Equal(t, List{Style: "bullet", Text: "item"}, ConvertContent(Todo{Text: "item"}, BlockTypeList))
	assert.Equal(t, Divider{}, ConvertContent(Paragraph{Text: "gone"}, BlockTypeDivider))
}

func TestRawCloneIsDeep(t *testing.T) {
	r := Raw{Type: "table", Fields: map[string]any{"rows": []any{map[string]any{"a": 1.0}}}}
	c := r.Clone().(Raw)

	c.Fields["rows"].([]any)[0].(map[string]any)["a"] = 2.0
	assert.Equal(t, 1.0, r.Fields["rows"].([]any)[0].(map[string]any)["a"])
}

func TestPropsRoundTrip(t *testing.T) {
	in := map[string]any{"icon": "star", "text_align": "center", "custom": []any{"a"}}
	assert.Equal(t, in, DecodeProps(in).Map())
}
