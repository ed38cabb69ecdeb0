package codec

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID      string         `json:"id" cbor:"id"`
	Parent  *string        `json:"parent_block" cbor:"parent_block"`
	Content map[string]any `json:"content" cbor:"content"`
	At      time.Time      `json:"updated_at" cbor:"updated_at"`
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": NameJSON, "json": NameJSON, "CBOR": NameCBOR} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, c.Name)
	}

	_, err := ByName("xml")
	assert.Error(t, err)
}

func TestForContentType(t *testing.T) {
	assert.Equal(t, NameCBOR, ForContentType("application/cbor", JSON()).Name)
	assert.Equal(t, NameJSON, ForContentType("application/json; charset=utf-8", CBOR()).Name)
	assert.Equal(t, NameCBOR, ForContentType("text/plain", CBOR()).Name)
	assert.Equal(t, NameJSON, ForContentType("", JSON()).Name)
}

func TestCodecsRoundTripPayload(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	in := payload{ID: "b1", Content: map[string]any{"text": "hi"}, At: at}

	for _, c := range []Codec{JSON(), CBOR()} {
		t.Run(c.Name, func(t *testing.T) {
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, "b1", out.ID)
			assert.Nil(t, out.Parent)
			assert.Equal(t, "hi", out.Content["text"])
			assert.True(t, at.Equal(out.At))

			var buf bytes.Buffer
			require.NoError(t, c.NewEncoder(&buf).Encode(in))
			var streamed payload
			require.NoError(t, c.NewDecoder(&buf).Decode(&streamed))
			assert.Equal(t, "b1", streamed.ID)
		})
	}
}

func TestCborDecodesMapsWithStringKeys(t *testing.T) {
	c := CBOR()
	data, err := c.Marshal(map[string]any{"blocks": []any{map[string]any{"id": "x"}}})
	require.NoError(t, err)

	var out any
	require.NoError(t, c.Unmarshal(data, &out))
	root, ok := out.(map[string]any)
	require.True(t, ok)
	blocks, ok := root["blocks"].([]any)
	require.True(t, ok)
	first, ok := blocks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", first["id"])
}
