package models

import (
	"errors"
	"fmt"
)

// ErrStructuralPatch is returned when a patch tries to change a block's parent or
// position. Structural changes must go through a move.
var ErrStructuralPatch = errors.New("parent and position cannot be patched, use a move")

// Patch is a change to the non-structural fields of a block. A nil field is left
// untouched. Patches are values: Invert captures what Apply would overwrite, so a
// rollback is just applying the inverse.
type Patch struct {
	Type    *BlockType
	Content Content
	Props   *Props
	Layout  *string
	Width   *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.Content == nil && p.Props == nil && p.Layout == nil && p.Width == nil
}

// Apply writes the patch into b.
//
// Changing the type without new content converts the current content, keeping
// its text. New content without a type also switches the block to the content's type.
func (p Patch) Apply(b *Block) {
	if p.Type != nil {
		if p.Content == nil && b.Type != *p.Type {
			b.Content = ConvertContent(b.Content, *p.Type)
		}
		b.Type = *p.Type
	}
	if p.Content != nil {
		b.Content = p.Content.Clone()
		if p.Type == nil {
			b.Type = p.Content.BlockType()
		}
	}
	if p.Props != nil {
		b.Props = p.Props.Clone()
	}
	if p.Layout != nil {
		b.Layout = *p.Layout
	}
	if p.Width != nil {
		b.Width = *p.Width
	}
}

// Invert returns the patch that restores b's current values for every field p
// touches.
func (p Patch) Invert(b Block) Patch {
	var inv Patch
	if p.Type != nil || p.Content != nil {
		t := b.Type
		inv.Type = &t
		if b.Content != nil {
			inv.Content = b.Content.Clone()
		} else {
			inv.Content = NewContent(b.Type)
		}
	}
	if p.Props != nil {
		props := b.Props.Clone()
		inv.Props = &props
	}
	if p.Layout != nil {
		layout := b.Layout
		inv.Layout = &layout
	}
	if p.Width != nil {
		width := b.Width
		inv.Width = &width
	}
	return inv
}

// Clone returns a deep copy of the patch.
func (p Patch) Clone() Patch {
	c := Patch{}
	if p.Type != nil {
		t := *p.Type
		c.Type = &t
	}
	if p.Content != nil {
		c.Content = p.Content.Clone()
	}
	if p.Props != nil {
		props := p.Props.Clone()
		c.Props = &props
	}
	if p.Layout != nil {
		layout := *p.Layout
		c.Layout = &layout
	}
	if p.Width != nil {
		width := *p.Width
		c.Width = &width
	}
	return c
}

// Fields returns the wire form of the patch, keyed like the PATCH request body.
func (p Patch) Fields() (map[string]any, error) {
	fields := map[string]any{}
	if p.Type != nil {
		fields["type"] = string(*p.Type)
	}
	if p.Content != nil {
		content, err := EncodeContent(p.Content)
		if err != nil {
			return nil, err
		}
		fields["content"] = content
		if p.Type == nil {
			fields["type"] = string(p.Content.BlockType())
		}
	}
	if p.Props != nil {
		fields["props"] = p.Props.Map()
	}
	if p.Layout != nil {
		fields["layout"] = *p.Layout
	}
	if p.Width != nil {
		fields["width"] = *p.Width
	}
	return fields, nil
}

// PatchFromMap builds a Patch from loosely typed input such as decoded JSON.
// current is the block's type, used to decode "content" when "type" is absent.
// Keys that would move the block are rejected with ErrStructuralPatch.
func PatchFromMap(current BlockType, m map[string]any) (Patch, error) {
	var p Patch

	for _, k := range []string{"parent_block", "parentId", "parent_id", "position"} {
		if _, ok := m[k]; ok {
			return Patch{}, fmt.Errorf("%w: field %q", ErrStructuralPatch, k)
		}
	}

	target := current
	if v, ok := m["type"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return Patch{}, fmt.Errorf("invalid type %v", v)
		}
		t := BlockType(s)
		p.Type = &t
		target = t
	}

	for k, v := range m {
		switch k {
		case "type":
		case "content":
			fields, ok := v.(map[string]any)
			if !ok {
				return Patch{}, fmt.Errorf("content must be an object, got %T", v)
			}
			content, err := DecodeContent(target, fields)
			if err != nil {
				return Patch{}, err
			}
			p.Content = content
		case "props":
			fields, ok := v.(map[string]any)
			if !ok {
				return Patch{}, fmt.Errorf("props must be an object, got %T", v)
			}
			props := DecodeProps(fields)
			p.Props = &props
		case "layout":
			s, ok := v.(string)
			if !ok {
				return Patch{}, fmt.Errorf("layout must be a string, got %T", v)
			}
			p.Layout = &s
		case "width":
			w, err := toFloat(v)
			if err != nil {
				return Patch{}, err
			}
			p.Width = &w
		default:
			return Patch{}, fmt.Errorf("unknown patch field %q", k)
		}
	}

	return p, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("width must be a number, got %T", v)
	}
}
