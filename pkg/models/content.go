package models

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Content is the type-specific payload of a block. The concrete type is chosen by
// the block's BlockType; types the client does not know are carried as Raw.
type Content interface {
	BlockType() BlockType
	Clone() Content
}

type Paragraph struct {
	Text string `json:"text"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// List is one item of a bulleted or numbered list.
type List struct {
	Style string `json:"style"`
	Text  string `json:"text"`
}

type Todo struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

type Quote struct {
	Text string `json:"text"`
}

type Code struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
	Alt     string `json:"alt,omitempty"`
}

type Divider struct{}

// Raw holds the payload of a block type unknown to this client, untouched.
type Raw struct {
	Type   BlockType
	Fields map[string]any
}

func (Paragraph) BlockType() BlockType { return BlockTypeParagraph }
func (Heading) BlockType() BlockType   { return BlockTypeHeading }
func (List) BlockType() BlockType      { return BlockTypeList }
func (Todo) BlockType() BlockType      { return BlockTypeTodo }
func (Quote) BlockType() BlockType     { return BlockTypeQuote }
func (Code) BlockType() BlockType      { return BlockTypeCode }
func (Image) BlockType() BlockType     { return BlockTypeImage }
func (Divider) BlockType() BlockType   { return BlockTypeDivider }
func (r Raw) BlockType() BlockType     { return r.Type }

func (c Paragraph) Clone() Content { return c }
func (c Heading) Clone() Content   { return c }
func (c List) Clone() Content      { return c }
func (c Todo) Clone() Content      { return c }
func (c Quote) Clone() Content     { return c }
func (c Code) Clone() Content      { return c }
func (c Image) Clone() Content     { return c }
func (c Divider) Clone() Content   { return c }

func (r Raw) Clone() Content {
	return Raw{Type: r.Type, Fields: copyMap(r.Fields)}
}

// NewContent returns the empty payload for t.
func NewContent(t BlockType) Content {
	switch t {
	case BlockTypeParagraph:
		return Paragraph{}
	case BlockTypeHeading:
		return Heading{Level: 1}
	case BlockTypeList:
		return List{Style: "bullet"}
	case BlockTypeTodo:
		return Todo{}
	case BlockTypeQuote:
		return Quote{}
	case BlockTypeCode:
		return Code{}
	case BlockTypeImage:
		return Image{}
	case BlockTypeDivider:
		return Divider{}
	default:
		return Raw{Type: t, Fields: map[string]any{}}
	}
}

// DecodeContent builds the payload for t from its generic wire form.
func DecodeContent(t BlockType, fields map[string]any) (Content, error) {
	switch t {
	case BlockTypeParagraph:
		return decodeInto[Paragraph](fields)
	case BlockTypeHeading:
		c, err := decodeInto[Heading](fields)
		if err == nil && c.(Heading).Level == 0 {
			h := c.(Heading)
			h.Level = 1
			c = h
		}
		return c, err
	case BlockTypeList:
		return decodeInto[List](fields)
	case BlockTypeTodo:
		return decodeInto[Todo](fields)
	case BlockTypeQuote:
		return decodeInto[Quote](fields)
	case BlockTypeCode:
		return decodeInto[Code](fields)
	case BlockTypeImage:
		return decodeInto[Image](fields)
	case BlockTypeDivider:
		return Divider{}, nil
	default:
		return Raw{Type: t, Fields: copyMap(fields)}, nil
	}
}

func decodeInto[T Content](fields map[string]any) (Content, error) {
	var v T
	if len(fields) == 0 {
		return v, nil
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s content: %w", v.BlockType(), err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %s content: %w", v.BlockType(), err)
	}

	return v, nil
}

// EncodeContent returns the generic wire form of c.
func EncodeContent(c Content) (map[string]any, error) {
	if c == nil {
		return map[string]any{}, nil
	}
	if r, ok := c.(Raw); ok {
		return copyMap(r.Fields), nil
	}

	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// TextOf returns the plain text carried by c, if any.
func TextOf(c Content) string {
	switch v := c.(type) {
	case Paragraph:
		return v.Text
	case Heading:
		return v.Text
	case List:
		return v.Text
	case Todo:
		return v.Text
	case Quote:
		return v.Text
	case Code:
		return v.Code
	case Image:
		return v.Caption
	case Raw:
		if s, ok := v.Fields["text"].(string); ok {
			return s
		}
	}
	return ""
}

// ConvertContent turns c into the payload for t, keeping its text where t has text.
func ConvertContent(c Content, t BlockType) Content {
	if c != nil && c.BlockType() == t {
		return c.Clone()
	}

	text := TextOf(c)
	switch next := NewContent(t).(type) {
	case Paragraph:
		next.Text = text
		return next
	case Heading:
		next.Text = text
		return next
	case List:
		next.Text = text
		return next
	case Todo:
		next.Text = text
		return next
	case Quote:
		next.Text = text
		return next
	case Code:
		next.Code = text
		return next
	case Image:
		next.Caption = text
		return next
	case Raw:
		if text != "" {
			next.Fields["text"] = text
		}
		return next
	default:
		return next
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
