package client

import (
	"fmt"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"github.com/fxamacker/cbor/v2"

	"github.com/surrealdb/blocktree/pkg/models"
)

// WireID is an id as the server sends it. Servers may use numbers or strings;
// both decode to their string form and null decodes to the empty string. The
// empty WireID encodes as null.
type WireID string

func (id WireID) String() string {
	return string(id)
}

func (id WireID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(string(id))), nil
}

func (id *WireID) UnmarshalJSON(data []byte) error {
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}

	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = WireID(s)
	case jsonparser.Number:
		*id = WireID(value)
	case jsonparser.Null:
		*id = ""
	default:
		return fmt.Errorf("decode id: unexpected %s", dataType)
	}
	return nil
}

func (id WireID) MarshalCBOR() ([]byte, error) {
	if id == "" {
		return cbor.Marshal(nil)
	}
	return cbor.Marshal(string(id))
}

func (id *WireID) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}

	switch t := v.(type) {
	case nil:
		*id = ""
	case string:
		*id = WireID(t)
	case uint64:
		*id = WireID(strconv.FormatUint(t, 10))
	case int64:
		*id = WireID(strconv.FormatInt(t, 10))
	case float64:
		*id = WireID(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return fmt.Errorf("decode id: unexpected %T", v)
	}
	return nil
}

// RawBlock is the server's block shape.
type RawBlock struct {
	ID          WireID         `json:"id" cbor:"id"`
	Page        WireID         `json:"page" cbor:"page"`
	ParentBlock WireID         `json:"parent_block" cbor:"parent_block"`
	Kind        string         `json:"kind,omitempty" cbor:"kind,omitempty"`
	Type        string         `json:"type,omitempty" cbor:"type,omitempty"`
	Content     map[string]any `json:"content,omitempty" cbor:"content,omitempty"`
	Layout      string         `json:"layout,omitempty" cbor:"layout,omitempty"`
	Width       float64        `json:"width,omitempty" cbor:"width,omitempty"`
	Position    string         `json:"position" cbor:"position"`
	Version     int64          `json:"version" cbor:"version"`
	UpdatedAt   time.Time      `json:"updated_at" cbor:"updated_at"`
	Props       map[string]any `json:"props,omitempty" cbor:"props,omitempty"`
}

// Normalize converts a RawBlock into the client block model: ids become
// strings, page falls back to pageID, and missing kind and type get defaults.
func Normalize(raw RawBlock, pageID string) (models.Block, error) {
	if raw.ID == "" {
		return models.Block{}, fmt.Errorf("%w: block without id", ErrInvalidResponse)
	}

	b := models.Block{
		ID:        raw.ID.String(),
		PageID:    raw.Page.String(),
		ParentID:  raw.ParentBlock.String(),
		Kind:      raw.Kind,
		Type:      models.BlockType(raw.Type),
		Layout:    raw.Layout,
		Width:     raw.Width,
		Position:  raw.Position,
		Version:   raw.Version,
		UpdatedAt: raw.UpdatedAt,
		Props:     models.DecodeProps(raw.Props),
	}
	if b.PageID == "" {
		b.PageID = pageID
	}
	if b.Kind == "" {
		b.Kind = models.DefaultKind
	}
	if b.Type == "" {
		b.Type = models.BlockTypeParagraph
	}

	content, err := models.DecodeContent(b.Type, raw.Content)
	if err != nil {
		return models.Block{}, fmt.Errorf("block %s: %w", b.ID, err)
	}
	b.Content = content
	return b, nil
}

// NormalizeAll normalizes a server block list.
func NormalizeAll(raws []RawBlock, pageID string) ([]models.Block, error) {
	out := make([]models.Block, 0, len(raws))
	for _, raw := range raws {
		b, err := Normalize(raw, pageID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// ToRaw converts a block back to the server shape.
func ToRaw(b models.Block) (RawBlock, error) {
	content, err := models.EncodeContent(b.Content)
	if err != nil {
		return RawBlock{}, err
	}
	props := b.Props.Map()
	if len(props) == 0 {
		props = nil
	}
	return RawBlock{
		ID:          WireID(b.ID),
		Page:        WireID(b.PageID),
		ParentBlock: WireID(b.ParentID),
		Kind:        b.Kind,
		Type:        string(b.Type),
		Content:     content,
		Layout:      b.Layout,
		Width:       b.Width,
		Position:    b.Position,
		Version:     b.Version,
		UpdatedAt:   b.UpdatedAt,
		Props:       props,
	}, nil
}
