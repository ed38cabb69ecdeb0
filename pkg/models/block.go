package models

import (
	"time"

	"github.com/goccy/go-json"
)

// BlockType is the content-type tag of a block. It selects the payload type of
// the block's Content.
type BlockType string

const (
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeHeading   BlockType = "heading"
	BlockTypeList      BlockType = "list"
	BlockTypeTodo      BlockType = "todo"
	BlockTypeQuote     BlockType = "quote"
	BlockTypeCode      BlockType = "code"
	BlockTypeImage     BlockType = "image"
	BlockTypeDivider   BlockType = "divider"
)

// DefaultKind is the kind discriminator for ordinary blocks.
const DefaultKind = "block"

// Block is one node of a page's block tree.
//
// Parent references are ids, never pointers: a block with an empty ParentID is a
// root block of its page. Siblings are ordered by Position, then by ID.
type Block struct {
	ID       string
	PageID   string
	ParentID string
	Kind     string
	Type     BlockType
	Content  Content
	Props    Props
	Layout   string
	Width    float64

	Position  string
	Version   int64
	UpdatedAt time.Time
}

// IsRoot reports whether the block sits at the top level of its page.
func (b Block) IsRoot() bool {
	return b.ParentID == ""
}

// Clone returns a deep copy of the block, safe to keep as a snapshot.
func (b Block) Clone() Block {
	c := b
	if b.Content != nil {
		c.Content = b.Content.Clone()
	}
	c.Props = b.Props.Clone()
	return c
}

type blockJSON struct {
	ID        string         `json:"id"`
	PageID    string         `json:"pageId"`
	ParentID  *string        `json:"parentId"`
	Kind      string         `json:"kind"`
	Type      BlockType      `json:"type"`
	Content   map[string]any `json:"content"`
	Props     map[string]any `json:"props,omitempty"`
	Layout    string         `json:"layout,omitempty"`
	Width     float64        `json:"width,omitempty"`
	Position  string         `json:"position"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// MarshalJSON encodes the block in its normalized (camelCase) shape.
func (b Block) MarshalJSON() ([]byte, error) {
	content, err := EncodeContent(b.Content)
	if err != nil {
		return nil, err
	}

	out := blockJSON{
		ID:        b.ID,
		PageID:    b.PageID,
		Kind:      b.Kind,
		Type:      b.Type,
		Content:   content,
		Props:     b.Props.Map(),
		Layout:    b.Layout,
		Width:     b.Width,
		Position:  b.Position,
		Version:   b.Version,
		UpdatedAt: b.UpdatedAt,
	}
	if b.ParentID != "" {
		parent := b.ParentID
		out.ParentID = &parent
	}

	return json.Marshal(out)
}
